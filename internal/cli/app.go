package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/hperssn/wizard/internal/domain"
	"github.com/hperssn/wizard/internal/gateway"
	"github.com/hperssn/wizard/internal/tokenstore"
	"github.com/hperssn/wizard/internal/upload"
	"github.com/hperssn/wizard/internal/wizard"
)

// app is one wizardctl invocation: a controller over the stored session
// plus the draft it reads field values from.
type app struct {
	ctrl   *wizard.Controller
	view   *terminal
	draft  *Draft
	drafts *draftStore
	out    io.Writer
}

func openApp(cmd *cobra.Command, opts *Options) (*app, error) {
	ctx := cmd.Context()
	logger := LoggerFromContext(ctx)

	tokens, err := tokenstore.NewFileStore(opts.fs, opts.StateDir)
	if err != nil {
		return nil, err
	}
	drafts := newDraftStore(opts.fs, opts.StateDir)
	draft, err := drafts.Load()
	if err != nil {
		return nil, err
	}

	client, err := gateway.NewClient(opts.BaseURL, &http.Client{Timeout: opts.HTTPTimeout}, logger)
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	view := newTerminal(out, opts.fs, draft)
	ctrl := wizard.NewController(client, tokens, view, wizard.Options{Logger: logger})
	if err := ctrl.Initialize(ctx); err != nil {
		return nil, err
	}

	a := &app{ctrl: ctrl, view: view, draft: draft, drafts: drafts, out: out}
	a.syncDraft()
	return a, nil
}

// syncDraft starts a clean draft when the session changed underneath it.
func (a *app) syncDraft() {
	id := a.ctrl.SessionID()
	if a.draft.SessionID == id {
		return
	}

	*a.draft = Draft{SessionID: id}
	data := a.ctrl.Data()
	a.view.Repopulate(domain.StepPersonalInfo, data)
	a.view.Repopulate(domain.StepCredentials, data)
}

func (a *app) close() error {
	a.syncDraft()
	return a.drafts.Save(a.draft)
}

// withApp opens the session around fn and always writes the draft back.
func withApp(opts *Options, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, opts)
		if err != nil {
			return err
		}

		runErr := fn(cmd, a, args)
		if err := a.close(); err != nil {
			return errors.Join(runErr, err)
		}
		return runErr
	}
}

func (a *app) printStatus() {
	w := a.out
	step := a.ctrl.Step()
	data := a.ctrl.Data()

	fmt.Fprintf(w, "Session: %s\n", a.ctrl.SessionID())
	fmt.Fprintf(w, "Current step: %d of %d (%s)\n", step.Number(), domain.StepCount, stepTitles[step])

	p := a.draft.PersonalInfo
	fmt.Fprintln(w, headerStyle.Render("Personal information"))
	fmt.Fprintf(w, "  fullName:    %s\n", p.FullName)
	fmt.Fprintf(w, "  email:       %s\n", p.Email)
	fmt.Fprintf(w, "  phoneNumber: %s\n", p.PhoneNumber)
	printRefs(w, data.PersonalInfo.Documents, p.Attach, p.Remove)

	c := a.draft.Credentials
	fmt.Fprintln(w, headerStyle.Render("Credentials"))
	fmt.Fprintf(w, "  skills: %v\n", c.Skills)
	printRefs(w, data.Credentials.Certifications, c.Attach, c.Remove)

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Projects (%d)", len(data.Projects))))
	for _, pr := range data.Projects {
		printProject(w, pr)
	}
}

func printRefs(w io.Writer, saved []domain.AttachmentRef, pending, remove []string) {
	for _, ref := range saved {
		mark := ""
		for _, r := range remove {
			if r == ref.StorageKey {
				mark = mutedStyle.Render(" (will be removed)")
			}
		}
		fmt.Fprintf(w, "  saved   %s %s [%s]%s\n", ref.OriginalName, upload.FormatSize(ref.Size), ref.StorageKey, mark)
	}
	for _, path := range pending {
		fmt.Fprintf(w, "  pending %s\n", path)
	}
}

func printProject(w io.Writer, p domain.Project) {
	end := p.EndDate
	if end == "" {
		end = domain.Present
	}
	fmt.Fprintf(w, "  [%d] %s  %s\n", p.ID, p.Title, mutedStyle.Render(p.StartDate+" - "+end))
	if p.URL != "" {
		fmt.Fprintf(w, "       %s\n", p.URL)
	}
	if len(p.Technologies) > 0 {
		fmt.Fprintf(w, "       %v\n", p.Technologies)
	}
}

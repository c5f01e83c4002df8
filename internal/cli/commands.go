package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hperssn/wizard/internal/domain"
	"github.com/hperssn/wizard/internal/upload"
	"github.com/hperssn/wizard/internal/validate"
	"github.com/hperssn/wizard/internal/wizard"
)

const (
	targetDocuments      = "documents"
	targetCertifications = "certifications"
)

func newStatusCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session, the current step and the draft",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(_ *cobra.Command, a *app, _ []string) error {
			a.printStatus()
			return nil
		}),
	}
}

func newSetCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <fullName|email|phoneNumber> <value>",
		Short: "Set a personal information field in the draft",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
			field, value := args[0], strings.TrimSpace(args[1])
			p := &a.draft.PersonalInfo

			switch field {
			case validate.FieldFullName:
				p.FullName = value
			case validate.FieldEmail:
				if value != "" && !validate.ValidEmail(value) {
					a.view.FieldError(validate.FieldEmail, "Please enter a valid email address")
				}
				p.Email = value
			case validate.FieldPhoneNumber:
				digits, violation := validate.NormalizePhone(value)
				if violation != nil {
					a.view.FieldError(violation.Field, violation.Message)
				}
				p.PhoneNumber = digits
			default:
				return fmt.Errorf("unknown field %q (want %s, %s or %s)",
					field, validate.FieldFullName, validate.FieldEmail, validate.FieldPhoneNumber)
			}
			return nil
		}),
	}
}

func newAttachCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <documents|certifications> <path>...",
		Short: "Queue files for upload with the next save of their step",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
			list, err := a.pendingList(args[0])
			if err != nil {
				return err
			}

			validator := upload.NewValidator()
			for _, path := range args[1:] {
				abs, err := filepath.Abs(path)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", path, err)
				}
				f, err := fileFromPath(opts.fs, abs)
				if err != nil {
					a.view.Notify(wizard.SeverityWarning, fmt.Sprintf("File %q cannot be read: %v", path, err))
					continue
				}
				if err := validator.Check(f); err != nil {
					a.view.Notify(wizard.SeverityWarning, err.Error())
					continue
				}

				*list = addUnique(*list, abs)
				a.view.Notify(wizard.SeveritySuccess, fmt.Sprintf("Queued %s (%s)", f.Name, upload.FormatSize(f.Size)))
			}
			return nil
		}),
	}
}

func newDetachCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "detach <documents|certifications> <path|storage-key>",
		Short: "Drop a queued file, or mark a saved one for removal",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
			list, err := a.pendingList(args[0])
			if err != nil {
				return err
			}
			target := args[1]

			for _, path := range *list {
				if path == target || filepath.Base(path) == target {
					*list = removeAll(*list, path)
					return nil
				}
			}

			data := a.ctrl.Data()
			saved, remove := data.PersonalInfo.Documents, &a.draft.PersonalInfo.Remove
			if args[0] == targetCertifications {
				saved, remove = data.Credentials.Certifications, &a.draft.Credentials.Remove
			}
			for _, ref := range saved {
				if ref.StorageKey == target || ref.OriginalName == target {
					*remove = addUnique(*remove, ref.StorageKey)
					return nil
				}
			}
			return fmt.Errorf("no attachment %q in %s", target, args[0])
		}),
	}
}

func (a *app) pendingList(target string) (*[]string, error) {
	switch target {
	case targetDocuments:
		return &a.draft.PersonalInfo.Attach, nil
	case targetCertifications:
		return &a.draft.Credentials.Attach, nil
	default:
		return nil, fmt.Errorf("unknown attachment list %q (want %s or %s)", target, targetDocuments, targetCertifications)
	}
}

func newSkillCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skill",
		Short: "Edit the selected skills",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <skill>...",
			Short: "Select skills",
			Args:  cobra.MinimumNArgs(1),
			RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
				c := &a.draft.Credentials
				c.Skills = domain.DedupeSkills(append(c.Skills, args...))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rm <skill>...",
			Short: "Deselect skills",
			Args:  cobra.MinimumNArgs(1),
			RunE: withApp(opts, func(_ *cobra.Command, a *app, args []string) error {
				c := &a.draft.Credentials
				c.Skills = removeAll(c.Skills, args...)
				return nil
			}),
		},
	)
	return cmd
}

func newNextCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Save the current step and continue",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			return a.ctrl.Advance(cmd.Context())
		}),
	}
}

func newBackCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "back",
		Short: "Go back one step without saving",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			return a.ctrl.Retreat(cmd.Context())
		}),
	}
}

func newJumpCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "jump <1-4>",
		Short: "Go directly to a step",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step %q: %w", args[0], err)
			}
			return a.ctrl.JumpTo(cmd.Context(), domain.Step(n-1))
		}),
	}
}

func newProjectCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects; every change is saved immediately",
	}

	var draft domain.ProjectDraft
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a project",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			p, err := a.ctrl.AddProject(cmd.Context(), draft)
			if err != nil {
				return err
			}
			printProject(a.out, p)
			return nil
		}),
	}
	add.Flags().StringVar(&draft.Title, "title", "", "Project title")
	add.Flags().StringVar(&draft.URL, "url", "", "Project URL")
	add.Flags().StringVar(&draft.StartDate, "start", "", "Start date (YYYY-MM-DD)")
	add.Flags().StringVar(&draft.EndDate, "end", "", "End date (YYYY-MM-DD)")
	add.Flags().BoolVar(&draft.Current, "current", false, "Project is ongoing")
	add.Flags().StringVar(&draft.Description, "description", "", "Project description")
	add.Flags().StringVar(&draft.Technologies, "technologies", "", "Comma separated technologies")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a project",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid project id %q: %w", args[0], err)
			}
			return a.ctrl.RemoveProject(cmd.Context(), id)
		}),
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(_ *cobra.Command, a *app, _ []string) error {
			for _, p := range a.ctrl.Projects().List() {
				printProject(a.out, p)
			}
			return nil
		}),
	}

	cmd.AddCommand(add, rm, ls)
	return cmd
}

func newSubmitCommand(opts *Options) *cobra.Command {
	var acceptTerms bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit the profile and start a new session",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			a.draft.TermsAccepted = acceptTerms

			profile, err := a.ctrl.SubmitFinal(cmd.Context())
			if profile.SessionID != "" {
				fmt.Fprintf(a.out, "Submitted profile %s with %d project(s)\n", profile.SessionID, len(profile.Projects))
			}
			return err
		}),
	}
	cmd.Flags().BoolVar(&acceptTerms, "accept-terms", false, "Accept the terms and conditions")
	return cmd
}

func newResetCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the session and start over",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			return a.ctrl.Reset(cmd.Context())
		}),
	}
}

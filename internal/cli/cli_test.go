package cli

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/hperssn/wizard/internal/domain"
	httpapi "github.com/hperssn/wizard/internal/http"
	"github.com/hperssn/wizard/internal/runner"
	"github.com/hperssn/wizard/internal/storage"
	"github.com/hperssn/wizard/internal/tokenstore"
	"github.com/hperssn/wizard/internal/wizard"
)

func TestDraftStoreRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newDraftStore(fs, "/state")

	empty, err := store.Load()
	if err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}
	if empty.SessionID != "" || empty.PersonalInfo.FullName != "" {
		t.Fatalf("Load() on missing file = %+v, want empty draft", empty)
	}

	want := &Draft{
		SessionID: "abc",
		PersonalInfo: PersonalDraft{
			FullName: "Ada Lovelace",
			Attach:   []string{"/docs/cv.pdf"},
		},
		Credentials:   CredentialDraft{Skills: []string{"Go", "SQL"}, Remove: []string{"key-1"}},
		TermsAccepted: true,
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.SessionID != want.SessionID || got.PersonalInfo.FullName != want.PersonalInfo.FullName || !got.TermsAccepted {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
	if len(got.PersonalInfo.Attach) != 1 || got.PersonalInfo.Attach[0] != "/docs/cv.pdf" {
		t.Errorf("Load().PersonalInfo.Attach = %v", got.PersonalInfo.Attach)
	}
	if len(got.Credentials.Skills) != 2 || len(got.Credentials.Remove) != 1 {
		t.Errorf("Load().Credentials = %+v", got.Credentials)
	}
}

func TestDraftStoreRejectsCorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/state/"+draftFileName, []byte("personalInfo: [unclosed"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := newDraftStore(fs, "/state").Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestAddUniqueAndRemoveAll(t *testing.T) {
	list := addUnique(nil, "a", "b", "a", "", "c")
	if strings.Join(list, ",") != "a,b,c" {
		t.Fatalf("addUnique() = %v", list)
	}
	list = removeAll(list, "b", "missing")
	if strings.Join(list, ",") != "a,c" {
		t.Fatalf("removeAll() = %v", list)
	}
}

func TestTerminalRepopulateKeepsTypedValues(t *testing.T) {
	draft := &Draft{PersonalInfo: PersonalDraft{FullName: "Typed Name"}}
	view := newTerminal(io.Discard, afero.NewMemMapFs(), draft)

	view.Repopulate(domain.StepPersonalInfo, wizard.StepData{
		PersonalInfo: domain.PersonalInfo{FullName: "Saved Name", PhoneNumber: "15551234567"},
	})
	view.Repopulate(domain.StepCredentials, wizard.StepData{
		Credentials: domain.Credentials{Skills: []string{"Go"}},
	})

	if draft.PersonalInfo.FullName != "Typed Name" {
		t.Errorf("FullName = %q, want typed value kept", draft.PersonalInfo.FullName)
	}
	if draft.PersonalInfo.PhoneNumber != "15551234567" {
		t.Errorf("PhoneNumber = %q, want saved value filled in", draft.PersonalInfo.PhoneNumber)
	}
	if len(draft.Credentials.Skills) != 1 || draft.Credentials.Skills[0] != "Go" {
		t.Errorf("Skills = %v, want [Go]", draft.Credentials.Skills)
	}
}

func TestTerminalStepSavedClearsPending(t *testing.T) {
	draft := &Draft{
		PersonalInfo: PersonalDraft{FullName: "typed", Attach: []string{"/a.pdf"}, Remove: []string{"k"}},
		Credentials:  CredentialDraft{Skills: []string{"Go"}, Attach: []string{"/b.pdf"}},
	}
	view := newTerminal(io.Discard, afero.NewMemMapFs(), draft)

	view.StepSaved(domain.StepPersonalInfo, wizard.StepData{
		PersonalInfo: domain.PersonalInfo{FullName: "Saved", PhoneNumber: "15551234567"},
	})

	if draft.PersonalInfo.FullName != "Saved" {
		t.Errorf("FullName = %q, want Saved", draft.PersonalInfo.FullName)
	}
	if len(draft.PersonalInfo.Attach) != 0 || len(draft.PersonalInfo.Remove) != 0 {
		t.Errorf("personal info pending = %+v, want cleared", draft.PersonalInfo)
	}
	if len(draft.Credentials.Attach) != 1 {
		t.Errorf("credentials draft changed by personal info save: %+v", draft.Credentials)
	}
}

func TestTerminalCollectSkipsUnreadableFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/docs/cv.pdf", []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var out bytes.Buffer
	draft := &Draft{PersonalInfo: PersonalDraft{Attach: []string{"/docs/cv.pdf", "/docs/missing.pdf"}}}
	in := newTerminal(&out, fs, draft).Collect(domain.StepPersonalInfo)

	if len(in.Attachments) != 1 || in.Attachments[0].Name != "cv.pdf" {
		t.Fatalf("Collect().Attachments = %+v, want only cv.pdf", in.Attachments)
	}
	if in.Attachments[0].ContentType != "application/pdf" {
		t.Errorf("ContentType = %q, want application/pdf", in.Attachments[0].ContentType)
	}
	if !strings.Contains(out.String(), "missing.pdf") {
		t.Errorf("output %q does not mention the unreadable file", out.String())
	}
}

type cliHarness struct {
	t        *testing.T
	fs       afero.Fs
	stateDir string
	baseURL  string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs, err := storage.NewBlobStore(afero.NewMemMapFs(), "/uploads")
	if err != nil {
		t.Fatalf("NewBlobStore() error = %v", err)
	}
	manager := runner.NewSessionManager(storage.NewMemoryRepository(), blobs, logger, runner.Config{})
	srv := httptest.NewServer(httpapi.NewRouter(manager, logger, httpapi.Options{}))
	t.Cleanup(srv.Close)

	return &cliHarness{
		t:        t,
		fs:       afero.NewMemMapFs(),
		stateDir: "/state",
		baseURL:  srv.URL,
	}
}

func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	full := append([]string{"--base-url", h.baseURL, "--state-dir", h.stateDir, "--log-level", "error"}, args...)
	err := execute(full, &out, logger, &Options{fs: h.fs})
	return out.String(), err
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()

	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("wizardctl %v error = %v\noutput:\n%s", args, err, out)
	}
	return out
}

func (h *cliHarness) token() string {
	h.t.Helper()

	store, err := tokenstore.NewFileStore(h.fs, h.stateDir)
	if err != nil {
		h.t.Fatalf("NewFileStore() error = %v", err)
	}
	token, ok, err := store.Load()
	if err != nil || !ok {
		h.t.Fatalf("token Load() = %q, %v, %v", token, ok, err)
	}
	return token
}

func (h *cliHarness) draft() *Draft {
	h.t.Helper()

	d, err := newDraftStore(h.fs, h.stateDir).Load()
	if err != nil {
		h.t.Fatalf("draft Load() error = %v", err)
	}
	return d
}

func TestWizardEndToEnd(t *testing.T) {
	h := newCLIHarness(t)
	if err := afero.WriteFile(h.fs, "/docs/cv.pdf", bytes.Repeat([]byte("x"), 2048), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := afero.WriteFile(h.fs, "/docs/tool.exe", []byte("MZ"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out := h.mustRun("status")
	if !strings.Contains(out, "Step 1 of 4") {
		t.Errorf("status output %q, want step 1", out)
	}
	first := h.token()

	h.mustRun("set", "fullName", "Ada Lovelace")
	out = h.mustRun("set", "phoneNumber", "+1 (555) 123-4567")
	if !strings.Contains(out, "only numbers") {
		t.Errorf("set phoneNumber output %q, want advisory", out)
	}
	if got := h.draft().PersonalInfo.PhoneNumber; got != "15551234567" {
		t.Errorf("draft phone = %q, want digits only", got)
	}

	out = h.mustRun("attach", "documents", "/docs/cv.pdf", "/docs/tool.exe")
	if !strings.Contains(out, "2.0 KiB") || !strings.Contains(out, "not a supported format") {
		t.Errorf("attach output %q", out)
	}
	if got := h.draft().PersonalInfo.Attach; len(got) != 1 || got[0] != filepath.Clean("/docs/cv.pdf") {
		t.Errorf("draft attach = %v, want only cv.pdf", got)
	}

	out = h.mustRun("next")
	if !strings.Contains(out, "Step submitted successfully!") || !strings.Contains(out, "Step 2 of 4") {
		t.Errorf("next output %q", out)
	}
	if d := h.draft(); len(d.PersonalInfo.Attach) != 0 || d.PersonalInfo.FullName != "Ada Lovelace" {
		t.Errorf("draft after save = %+v, want saved values and no pending files", d.PersonalInfo)
	}

	if _, err := h.run("next"); err == nil {
		t.Fatal("next without skills succeeded")
	}

	h.mustRun("skill", "add", "Go", "SQL", "Go")
	if got := h.draft().Credentials.Skills; strings.Join(got, ",") != "Go,SQL" {
		t.Errorf("draft skills = %v, want [Go SQL]", got)
	}
	h.mustRun("next")

	out = h.mustRun("project", "add",
		"--title", "Analytical Engine",
		"--start", "2024-01-01",
		"--current",
		"--description", "Mechanical computer",
		"--technologies", "brass, steam")
	if !strings.Contains(out, "Project added successfully!") || !strings.Contains(out, "Present") {
		t.Errorf("project add output %q", out)
	}
	if _, err := h.run("project", "add", "--start", "2024-01-01", "--description", "x"); err == nil {
		t.Error("project add without title succeeded")
	}

	out = h.mustRun("next")
	if !strings.Contains(out, "Step 4 of 4") || !strings.Contains(out, "Analytical Engine") || !strings.Contains(out, "cv.pdf (2.0 KiB)") {
		t.Errorf("review output %q", out)
	}

	if _, err := h.run("submit"); err == nil {
		t.Fatal("submit without accepting terms succeeded")
	}
	if h.token() != first {
		t.Fatal("failed submit replaced the session")
	}

	out = h.mustRun("submit", "--accept-terms")
	if !strings.Contains(out, "Profile submitted successfully!") || !strings.Contains(out, "Form has been reset") {
		t.Errorf("submit output %q", out)
	}

	second := h.token()
	if second == first {
		t.Fatal("session token not replaced after submit")
	}
	if d := h.draft(); d.SessionID != second || d.PersonalInfo.FullName != "" || d.TermsAccepted {
		t.Errorf("draft after submit = %+v, want fresh draft for %s", d, second)
	}
}

func TestNavigationCommands(t *testing.T) {
	h := newCLIHarness(t)

	if _, err := h.run("jump", "3"); err == nil {
		t.Fatal("jump past incomplete steps succeeded")
	}
	if _, err := h.run("jump", "9"); err == nil {
		t.Fatal("jump out of range succeeded")
	}

	h.mustRun("set", "fullName", "Grace Hopper")
	h.mustRun("set", "phoneNumber", "15551234567")
	h.mustRun("next")

	out := h.mustRun("back")
	if !strings.Contains(out, "Step 1 of 4") {
		t.Errorf("back output %q", out)
	}

	out = h.mustRun("jump", "2")
	if !strings.Contains(out, "Step 2 of 4") {
		t.Errorf("jump output %q", out)
	}

	if _, err := h.run("set", "nickname", "x"); err == nil {
		t.Error("set of unknown field succeeded")
	}
	if _, err := h.run("attach", "photos", "/x.png"); err == nil {
		t.Error("attach to unknown list succeeded")
	}
}

func TestResetStartsNewSession(t *testing.T) {
	h := newCLIHarness(t)

	h.mustRun("set", "fullName", "Someone")
	first := h.token()

	out := h.mustRun("reset")
	if !strings.Contains(out, "Form has been reset") {
		t.Errorf("reset output %q", out)
	}
	if h.token() == first {
		t.Fatal("reset kept the old session")
	}
	if got := h.draft().PersonalInfo.FullName; got != "" {
		t.Errorf("draft name after reset = %q, want empty", got)
	}
}

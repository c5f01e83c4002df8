// Package gateway is the typed client of the wizard session API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/hperssn/wizard/internal/domain"
	httpapi "github.com/hperssn/wizard/internal/http"
	"github.com/hperssn/wizard/internal/upload"
	"github.com/hperssn/wizard/internal/validate"
)

// ErrNotFound means the server does not know the session, or it was
// already completed. Callers treat it as a cue to start a new session.
var ErrNotFound = errors.New("session not found")

// RejectedError is a save or completion the server refused.
type RejectedError struct {
	Status     int
	Reason     string
	Violations []validate.Violation
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("request rejected with status %d", e.Status)
	}
	return e.Reason
}

func IsRejected(err error) bool {
	var target *RejectedError
	return errors.As(err, &target)
}

type PersonalInfoPayload struct {
	FullName    string
	Email       string
	PhoneNumber string
	// Keep lists storage keys of already saved documents to retain.
	Keep      []string
	Documents []upload.File
}

type CredentialsPayload struct {
	Skills         []string
	Keep           []string
	Certifications []upload.File
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url is empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: baseURL, http: httpClient, logger: logger}, nil
}

type envelope[T any] struct {
	Success    bool                 `json:"success"`
	SessionID  string               `json:"sessionId"`
	Data       T                    `json:"data"`
	Error      string               `json:"error"`
	Violations []validate.Violation `json:"violations"`
}

// Init creates a new empty session and returns its id.
func (c *Client) Init(ctx context.Context) (string, error) {
	var out envelope[json.RawMessage]
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions", nil, &out); err != nil {
		return "", fmt.Errorf("init session: %w", err)
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("init session: response carried no session id")
	}
	return out.SessionID, nil
}

// Resume fetches a stored session. ErrNotFound is a normal outcome.
func (c *Client) Resume(ctx context.Context, id string) (*domain.Session, error) {
	var out envelope[*domain.Session]
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(id, ""), nil, &out); err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	if out.Data == nil {
		return nil, fmt.Errorf("resume session: response carried no session")
	}
	return out.Data, nil
}

// UpdateStep moves the server-side step pointer.
func (c *Client) UpdateStep(ctx context.Context, id string, step domain.Step) error {
	req := httpapi.StepRequest{SessionID: id, CurrentStep: step}
	var out envelope[json.RawMessage]
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(id, "step"), req, &out); err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	return nil
}

func (c *Client) SavePersonalInfo(ctx context.Context, id string, p PersonalInfoPayload) (domain.PersonalInfo, error) {
	fields := map[string][]string{
		httpapi.FormSessionID:     {id},
		httpapi.FormFullName:      {p.FullName},
		httpapi.FormEmail:         {p.Email},
		httpapi.FormPhoneNumber:   {p.PhoneNumber},
		httpapi.FormKeepDocuments: p.Keep,
	}

	var out envelope[domain.PersonalInfo]
	err := c.doMultipart(ctx, sessionPath(id, "personal-info"), fields, httpapi.FormDocuments, p.Documents, &out)
	if err != nil {
		return domain.PersonalInfo{}, fmt.Errorf("save personal info: %w", err)
	}
	return out.Data, nil
}

func (c *Client) SaveCredentials(ctx context.Context, id string, p CredentialsPayload) (domain.Credentials, error) {
	fields := map[string][]string{
		httpapi.FormSessionID: {id},
		httpapi.FormSkills:    p.Skills,
		httpapi.FormKeepCerts: p.Keep,
	}

	var out envelope[domain.Credentials]
	err := c.doMultipart(ctx, sessionPath(id, "credentials"), fields, httpapi.FormCertifications, p.Certifications, &out)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("save credentials: %w", err)
	}
	return out.Data, nil
}

// SaveProjects sends the entire list; the server replaces what it has.
func (c *Client) SaveProjects(ctx context.Context, id string, projects []domain.Project) error {
	if projects == nil {
		projects = []domain.Project{}
	}
	req := httpapi.ProjectsRequest{SessionID: id, Projects: projects}

	var out envelope[json.RawMessage]
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(id, "projects"), req, &out); err != nil {
		return fmt.Errorf("save projects: %w", err)
	}
	return nil
}

func (c *Client) Complete(ctx context.Context, id string) (domain.CompletedProfile, error) {
	req := httpapi.CompleteRequest{SessionID: id}

	var out envelope[domain.CompletedProfile]
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(id, "complete"), req, &out); err != nil {
		return domain.CompletedProfile{}, fmt.Errorf("complete profile: %w", err)
	}
	return out.Data, nil
}

// Discard deletes the session server-side. A session the server no longer
// knows counts as discarded.
func (c *Client) Discard(ctx context.Context, id string) error {
	err := c.doJSON(ctx, http.MethodDelete, sessionPath(id, ""), nil, nil)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("discard session: %w", err)
	}
	return nil
}

func sessionPath(id, suffix string) string {
	p := "/api/sessions/" + url.PathEscape(id)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

func (c *Client) doMultipart(ctx context.Context, path string, fields map[string][]string, fileField string, files []upload.File, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for key, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(key, v); err != nil {
				return fmt.Errorf("encode field %s: %w", key, err)
			}
		}
	}
	for _, f := range files {
		if err := writeFilePart(mw, fileField, f); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("encode multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

func writeFilePart(mw *multipart.Writer, field string, f upload.File) error {
	if f.Open == nil {
		return fmt.Errorf("attachment %q has no content", f.Name)
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = upload.DetectContentType(f.Name)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.Name))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("encode attachment %q: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open attachment %q: %w", f.Name, err)
	}
	defer rc.Close()

	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("read attachment %q: %w", f.Name, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	c.logger.Debug("session api request", "method", req.Method, "path", req.URL.Path)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return ErrNotFound
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var failure envelope[json.RawMessage]
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return &RejectedError{Status: resp.StatusCode, Reason: failure.Error, Violations: failure.Violations}
	}

	if out == nil {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, &failure); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !failure.Success {
		return &RejectedError{Status: resp.StatusCode, Reason: failure.Error, Violations: failure.Violations}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Package httpapi exposes the wizard session API over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hperssn/wizard/internal/runner"
	"github.com/hperssn/wizard/internal/storage"
	"github.com/hperssn/wizard/internal/upload"
)

const defaultMaxRequestBytes = 32 << 20

type Options struct {
	// MaxRequestBytes caps request bodies, multipart uploads included.
	MaxRequestBytes int64
}

type server struct {
	manager *runner.SessionManager
	maxBody int64
}

func NewRouter(manager *runner.SessionManager, logger *slog.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = defaultMaxRequestBytes
	}
	s := &server{manager: manager, maxBody: opts.MaxRequestBytes}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.getStats)

		r.Post("/sessions", s.startSession)
		r.Get("/sessions/{id}", s.getSession)
		r.Delete("/sessions/{id}", s.deleteSession)
		r.Get("/sessions/{id}/status", s.getSessionStatus)
		r.Post("/sessions/{id}/step", s.updateStep)
		r.Post("/sessions/{id}/personal-info", s.savePersonalInfo)
		r.Post("/sessions/{id}/credentials", s.saveCredentials)
		r.Post("/sessions/{id}/projects", s.saveProjects)
		r.Post("/sessions/{id}/complete", s.completeSession)
		r.Get("/sessions/{id}/attachments/{key}", s.getAttachment)
		r.Get("/sessions/{id}/events", s.streamSessionEvents)
	})

	return r
}

func (s *server) startSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.StartSession(r.Context())
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, Response{Success: true, SessionID: session.ID}, http.StatusCreated)
}

func (s *server) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, Response{Success: true, Data: session}, http.StatusOK)
}

func (s *server) getSessionStatus(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.LookupSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	status := StatusResponse{
		ID:          session.ID,
		Completed:   session.Completed(),
		CurrentStep: session.CurrentStep,
	}
	respondJSON(w, Response{Success: true, Data: status}, http.StatusOK)
}

func (s *server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) updateStep(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.manager.UpdateStep(r.Context(), chi.URLParam(r, "id"), req.CurrentStep); err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, Response{Success: true}, http.StatusOK)
}

func (s *server) savePersonalInfo(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseMultipart(w, r)
	if err != nil {
		respondError(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	in := runner.PersonalInfoInput{
		FullName:    formValue(form, FormFullName),
		Email:       formValue(form, FormEmail),
		PhoneNumber: formValue(form, FormPhoneNumber),
		Keep:        form.Value[FormKeepDocuments],
		Documents:   formFiles(form, FormDocuments),
	}

	info, err := s.manager.SavePersonalInfo(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, Response{Success: true, Data: info}, http.StatusOK)
}

func (s *server) saveCredentials(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseMultipart(w, r)
	if err != nil {
		respondError(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	in := runner.CredentialsInput{
		Skills:         form.Value[FormSkills],
		Keep:           form.Value[FormKeepCerts],
		Certifications: formFiles(form, FormCertifications),
	}

	creds, err := s.manager.SaveCredentials(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, Response{Success: true, Data: creds}, http.StatusOK)
}

func (s *server) saveProjects(w http.ResponseWriter, r *http.Request) {
	var req ProjectsRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.manager.SaveProjects(r.Context(), chi.URLParam(r, "id"), req.Projects); err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, Response{Success: true}, http.StatusOK)
}

func (s *server) completeSession(w http.ResponseWriter, r *http.Request) {
	profile, err := s.manager.CompleteSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, Response{Success: true, Data: profile}, http.StatusOK)
}

func (s *server) getAttachment(w http.ResponseWriter, r *http.Request) {
	ref, body, err := s.manager.OpenAttachment(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "key"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", upload.DetectContentType(ref.OriginalName))
	w.Header().Set("Content-Length", strconv.FormatInt(ref.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ref.OriginalName))
	if _, err := io.Copy(w, body); err != nil {
		LoggerFrom(r.Context()).Warn("attachment copy failed", "error", err)
	}
}

func (s *server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.Stats(r.Context())
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, Response{Success: true, Data: stats}, http.StatusOK)
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *server) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(s.maxBody); err != nil {
		return nil, err
	}
	return r.MultipartForm, nil
}

func formValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func formFiles(form *multipart.Form, key string) []upload.File {
	headers := form.File[key]
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		files = append(files, upload.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return files
}

func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *runner.RejectedError

	switch {
	case errors.As(err, &rejected):
		respondJSON(w, Response{Error: rejected.Reason, Violations: rejected.Violations}, http.StatusUnprocessableEntity)
	case errors.Is(err, runner.ErrSessionNotFound):
		respondError(w, "session not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, "not found", http.StatusNotFound)
	case errors.Is(err, runner.ErrSessionCompleted):
		respondError(w, "session already completed", http.StatusGone)
	case errors.Is(err, runner.ErrInvalidStep):
		respondError(w, "invalid step index", http.StatusBadRequest)
	default:
		LoggerFrom(r.Context()).Error("request failed", "error", err)
		respondError(w, "internal error", http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, Response{Error: message}, status)
}

package httpapi

import (
	"github.com/hperssn/wizard/internal/domain"
	"github.com/hperssn/wizard/internal/validate"
)

// Multipart form field names shared with the gateway.
const (
	FormSessionID      = "sessionId"
	FormFullName       = "fullName"
	FormEmail          = "email"
	FormPhoneNumber    = "phoneNumber"
	FormDocuments      = "documents"
	FormKeepDocuments  = "keepDocuments"
	FormSkills         = "skills[]"
	FormCertifications = "certifications"
	FormKeepCerts      = "keepCertifications"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success    bool                 `json:"success"`
	SessionID  string               `json:"sessionId,omitempty"`
	Data       any                  `json:"data,omitempty"`
	Error      string               `json:"error,omitempty"`
	Violations []validate.Violation `json:"violations,omitempty"`
}

type StepRequest struct {
	SessionID   string      `json:"sessionId"`
	CurrentStep domain.Step `json:"currentStep"`
}

type ProjectsRequest struct {
	SessionID string           `json:"sessionId"`
	Projects  []domain.Project `json:"projects"`
}

type CompleteRequest struct {
	SessionID string `json:"sessionId"`
}

type StatusResponse struct {
	ID          string      `json:"id"`
	Completed   bool        `json:"completed"`
	CurrentStep domain.Step `json:"currentStep"`
}

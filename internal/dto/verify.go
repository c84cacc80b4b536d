package dto

import "github.com/octobees/mailprobe/internal/entity"

// EmailRequest is the body accepted by the validate and enrich endpoints.
type EmailRequest struct {
	Email string `json:"email"`
}

// Operation names the pipeline a queued job runs.
type Operation string

const (
	OperationValidate Operation = "validate"
	OperationEnrich   Operation = "enrich"
)

// VerifyJob is a queued verification request.
type VerifyJob struct {
	Email       string    `json:"email"`
	Operation   Operation `json:"operation"`
	ResultTopic string    `json:"result_topic,omitempty"`
}

// VerifyJobResult is published once a job has been processed.
type VerifyJobResult struct {
	Email      string                   `json:"email"`
	Operation  Operation                `json:"operation"`
	Validation *entity.ValidationResult `json:"validation,omitempty"`
	Enrichment *entity.EnrichmentResult `json:"enrichment,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

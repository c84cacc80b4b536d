package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/octobees/mailprobe/internal/dto"
	"github.com/octobees/mailprobe/internal/entity"
	"github.com/octobees/mailprobe/internal/service"
)

// Verifier runs the validation and enrichment pipelines.
type Verifier interface {
	Validate(ctx context.Context, email string) (entity.ValidationResult, error)
	Enrich(ctx context.Context, email string) (entity.EnrichmentResult, error)
}

// VerifyHandler serves the public validate and enrich endpoints.
type VerifyHandler struct {
	verifier Verifier
	log      logrus.FieldLogger
}

// NewVerifyHandler wires a new VerifyHandler instance.
func NewVerifyHandler(verifier Verifier, log logrus.FieldLogger) *VerifyHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &VerifyHandler{verifier: verifier, log: log}
}

// Validate returns the deliverability verdict for the posted address.
func (h *VerifyHandler) Validate(c echo.Context) error {
	email, problem := bindEmail(c)
	if problem != "" {
		return Error(c, http.StatusBadRequest, problem)
	}

	// Probes run to completion even if the client disconnects.
	ctx := context.WithoutCancel(c.Request().Context())
	result, err := h.verifier.Validate(ctx, email)
	if err != nil {
		return h.fail(c, email, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Enrich validates the posted address and adds identity and company details.
func (h *VerifyHandler) Enrich(c echo.Context) error {
	email, problem := bindEmail(c)
	if problem != "" {
		return Error(c, http.StatusBadRequest, problem)
	}

	ctx := context.WithoutCancel(c.Request().Context())
	result, err := h.verifier.Enrich(ctx, email)
	if err != nil {
		return h.fail(c, email, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *VerifyHandler) fail(c echo.Context, email string, err error) error {
	switch {
	case errors.Is(err, service.ErrEmailRequired):
		return Error(c, http.StatusBadRequest, "email is required")
	case errors.Is(err, service.ErrInvalidEmail):
		return Error(c, http.StatusUnprocessableEntity, "email address is not parseable")
	default:
		h.log.WithError(err).WithField("email", email).Error("verification failed")
		return Error(c, http.StatusInternalServerError, "verification failed")
	}
}

// bindEmail decodes the request body and returns the address, or a message
// describing why the body was rejected.
func bindEmail(c echo.Context) (string, string) {
	var payload dto.EmailRequest
	if err := c.Bind(&payload); err != nil {
		return "", "invalid JSON payload"
	}
	email := strings.TrimSpace(payload.Email)
	if email == "" {
		return "", "email is required"
	}
	return email, ""
}

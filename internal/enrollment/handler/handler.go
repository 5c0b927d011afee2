package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"learnhub/internal/auth/guard"
	"learnhub/internal/enrollment"
	"learnhub/internal/enrollment/models"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/httputil"
	"learnhub/pkg/requestcontext"
)

type Ledger interface {
	Enroll(ctx context.Context, userID id.UserID, courseID id.CourseID) (*enrollment.Result, error)
}

type Handler struct {
	ledger Ledger
	guard  *guard.Guard
	logger *slog.Logger
}

func New(ledger Ledger, g *guard.Guard, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, guard: g, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.With(h.guard.RequireSession).Post("/enroll-course/{id}", h.handleEnroll)
}

type enrollResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Course  *models.Course `json:"course,omitempty"`
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	a, ok := guard.AuthenticatedFrom(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "auth context missing despite session middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	courseID, err := id.ParseCourseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid course id"))
		return
	}

	result, err := h.ledger.Enroll(ctx, a.Auth.UserID, courseID)
	if err != nil {
		h.logger.WarnContext(ctx, "enrollment failed",
			"request_id", requestID,
			"course_id", courseID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	if result.AlreadyEnrolled() {
		httputil.WriteJSON(w, http.StatusOK, enrollResponse{Success: true, Message: "Already enrolled", Course: result.Course})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, enrollResponse{Success: true, Message: "Course enrolled successfully", Course: result.Course})
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"learnhub/internal/payment"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/httputil"
	"learnhub/pkg/requestcontext"
)

type Verifier interface {
	Verify(ctx context.Context, c payment.Confirmation) (*payment.Verification, error)
}

type Handler struct {
	verifier Verifier
	logger   *slog.Logger
}

func New(verifier Verifier, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, logger: logger}
}

// Register mounts /verify-payment. The route is payload-driven: the gateway
// signature, not a session, authenticates it.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verify-payment", h.handleVerifyPayment)
}

type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
	CourseID  string `json:"courseId"`
	UserID    string `json:"userId"`
}

type verifyPaymentResponse struct {
	Success         bool         `json:"success"`
	Message         string       `json:"message"`
	AlreadyEnrolled bool         `json:"alreadyEnrolled,omitempty"`
	Data            *paymentData `json:"data,omitempty"`
}

type paymentData struct {
	CourseID   string    `json:"courseId"`
	CourseName string    `json:"courseName"`
	PaymentID  string    `json:"paymentId"`
	OrderID    string    `json:"orderId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid verify payment request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	v, err := h.verifier.Verify(ctx, payment.Confirmation{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		CourseID:  req.CourseID,
		UserID:    req.UserID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "payment verification failed",
			"request_id", requestID,
			"order_id", req.OrderID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	if v.AlreadyEnrolled {
		httputil.WriteJSON(w, http.StatusOK, verifyPaymentResponse{
			Success:         true,
			Message:         "Already enrolled in this course",
			AlreadyEnrolled: true,
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, verifyPaymentResponse{
		Success: true,
		Message: "Payment verified successfully! Course unlocked.",
		Data: &paymentData{
			CourseID:   v.Enrollment.Course.ID.String(),
			CourseName: v.Enrollment.Course.Name,
			PaymentID:  v.PaymentID,
			OrderID:    v.OrderID,
			EnrolledAt: requestcontext.Now(ctx),
		},
	})
}

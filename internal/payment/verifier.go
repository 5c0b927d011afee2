// Package payment checks gateway payment confirmations and turns verified
// ones into enrollments.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"learnhub/internal/enrollment"
	"learnhub/internal/notification"
	"learnhub/internal/platform/metrics"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/requestcontext"
)

// Confirmation is the client-relayed proof of payment. Ids arrive as strings
// and are validated here, before any lookup.
type Confirmation struct {
	OrderID   string
	PaymentID string
	Signature string
	CourseID  string
	UserID    string
}

// Verification is the successful outcome. AlreadyEnrolled marks a replay.
type Verification struct {
	AlreadyEnrolled bool
	Enrollment      *enrollment.Result
	OrderID         string
	PaymentID       string
}

type Enroller interface {
	Enroll(ctx context.Context, userID id.UserID, courseID id.CourseID) (*enrollment.Result, error)
}

// Notifier must not block; delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n notification.Notification)
}

type Verifier struct {
	secret   []byte
	strict   bool
	ledger   Enroller
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Verifier)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(v *Verifier) {
		v.notifier = n
	}
}

// New builds a verifier. With strict false a signature mismatch is logged and
// the confirmation is accepted anyway; configuration refuses that outside
// development.
func New(secret string, strict bool, ledger Enroller, opts ...Option) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("payment signature secret is required")
	}
	if ledger == nil {
		return nil, errors.New("enrollment ledger is required")
	}
	v := &Verifier{
		secret: []byte(secret),
		strict: strict,
		ledger: ledger,
		logger: slog.Default(),
		tracer: otel.Tracer("learnhub/payment"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" under secret, the
// value the gateway hands the client.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) signatureValid(c Confirmation) bool {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(c.OrderID + "|" + c.PaymentID))
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(strings.ToLower(c.Signature))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

func validate(c Confirmation) (id.UserID, id.CourseID, error) {
	if c.OrderID == "" || c.PaymentID == "" || c.Signature == "" {
		return id.UserID{}, id.CourseID{}, dErrors.New(dErrors.CodeValidation, "missing payment verification data")
	}
	if c.CourseID == "" || c.UserID == "" {
		return id.UserID{}, id.CourseID{}, dErrors.New(dErrors.CodeValidation, "course id and user id are required")
	}
	userID, err := id.ParseUserID(c.UserID)
	if err != nil {
		return id.UserID{}, id.CourseID{}, err
	}
	courseID, err := id.ParseCourseID(c.CourseID)
	if err != nil {
		return id.UserID{}, id.CourseID{}, err
	}
	return userID, courseID, nil
}

// Verify validates the confirmation, checks its signature and enrolls the
// user. A replay of an already applied confirmation succeeds with
// AlreadyEnrolled set and changes nothing.
func (v *Verifier) Verify(ctx context.Context, c Confirmation) (_ *Verification, err error) {
	ctx, span := v.tracer.Start(ctx, "payment.Verify", trace.WithAttributes(
		attribute.String("order_id", c.OrderID),
		attribute.String("payment_id", c.PaymentID),
	))
	result := "error"
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("result", result))
		span.End()
		v.metrics.IncrementPaymentVerification(result)
	}()

	userID, courseID, err := validate(c)
	if err != nil {
		result = "invalid"
		return nil, err
	}

	requestID := requestcontext.RequestID(ctx)
	if !v.signatureValid(c) {
		if v.strict {
			result = "signature_mismatch"
			v.logger.WarnContext(ctx, "payment signature mismatch",
				"order_id", c.OrderID,
				"payment_id", c.PaymentID,
				"request_id", requestID,
			)
			return nil, dErrors.New(dErrors.CodeSignatureMismatch, "payment verification failed")
		}
		v.logger.WarnContext(ctx, "payment signature mismatch accepted: strict verification disabled",
			"order_id", c.OrderID,
			"payment_id", c.PaymentID,
			"request_id", requestID,
		)
	}

	res, err := v.ledger.Enroll(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	out := &Verification{
		AlreadyEnrolled: res.AlreadyEnrolled(),
		Enrollment:      res,
		OrderID:         c.OrderID,
		PaymentID:       c.PaymentID,
	}
	if out.AlreadyEnrolled {
		result = "already_enrolled"
		return out, nil
	}

	result = "verified"
	v.logger.InfoContext(ctx, "payment verified",
		"user_id", userID.String(),
		"course_id", courseID.String(),
		"order_id", c.OrderID,
		"payment_id", c.PaymentID,
		"request_id", requestID,
	)
	if v.notifier != nil {
		v.notifier.Notify(ctx, notification.Notification{
			ID:        id.NewNotificationID(),
			UserID:    userID,
			Title:     "New Order",
			Message:   fmt.Sprintf("You have a new order for %s", res.Course.Name),
			Status:    notification.StatusUnread,
			CreatedAt: requestcontext.Now(ctx),
		})
	}
	return out, nil
}

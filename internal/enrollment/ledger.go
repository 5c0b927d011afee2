// Package enrollment commits paid enrollments at most once per user and course.
package enrollment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	authModels "learnhub/internal/auth/models"
	"learnhub/internal/auth/snapshot"
	"learnhub/internal/enrollment/models"
	"learnhub/internal/platform/metrics"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
	"learnhub/pkg/requestcontext"
)

type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*authModels.Principal, error)
}

// Store owns courses and enrollment rows. InsertEnrollment reports false when
// the pair already exists.
type Store interface {
	FindCourse(ctx context.Context, courseID id.CourseID) (*models.Course, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]authModels.EnrollmentRecord, error)
	InsertEnrollment(ctx context.Context, userID id.UserID, courseID id.CourseID, at time.Time) (bool, error)
	IncrementPurchased(ctx context.Context, courseID id.CourseID) error
}

// TxRunner runs fn so that every store call made with the ctx it receives
// commits or rolls back together.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Result describes an Enroll call. Principal includes the course list after
// the call.
type Result struct {
	Outcome   models.Outcome
	Principal *authModels.Principal
	Course    *models.Course
}

func (r *Result) AlreadyEnrolled() bool {
	return r.Outcome == models.OutcomeAlreadyEnrolled
}

type Ledger struct {
	users    UserStore
	store    Store
	tx       TxRunner
	sessions snapshot.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

func New(users UserStore, store Store, tx TxRunner, sessions snapshot.Store, opts ...Option) (*Ledger, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if store == nil {
		return nil, errors.New("enrollment store is required")
	}
	if tx == nil {
		return nil, errors.New("tx runner is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	l := &Ledger{
		users:    users,
		store:    store,
		tx:       tx,
		sessions: sessions,
		logger:   slog.Default(),
		tracer:   otel.Tracer("learnhub/enrollment"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LoadPrincipal returns the user with their enrollment list filled in.
func (l *Ledger) LoadPrincipal(ctx context.Context, userID id.UserID) (*authModels.Principal, error) {
	p, err := l.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	courses, err := l.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load enrollments")
	}
	p.Courses = courses
	return p, nil
}

// FindCourse maps a missing course to CodeNotFound.
func (l *Ledger) FindCourse(ctx context.Context, courseID id.CourseID) (*models.Course, error) {
	course, err := l.store.FindCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "course not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load course")
	}
	return course, nil
}

// Enroll adds courseID to the user's enrollments exactly once. A repeat call,
// or the loser of a concurrent race, gets OutcomeAlreadyEnrolled with no
// side effects. On a fresh enrollment the cached session is refreshed before
// returning.
func (l *Ledger) Enroll(ctx context.Context, userID id.UserID, courseID id.CourseID) (_ *Result, err error) {
	start := time.Now()
	ctx, span := l.tracer.Start(ctx, "enrollment.Enroll", trace.WithAttributes(
		attribute.String("user_id", userID.String()),
		attribute.String("course_id", courseID.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		l.metrics.ObserveEnroll(start)
	}()

	principal, err := l.LoadPrincipal(ctx, userID)
	if err != nil {
		return nil, err
	}
	course, err := l.FindCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if principal.HasCourse(courseID) {
		l.metrics.IncrementEnrollment(string(models.OutcomeAlreadyEnrolled))
		span.SetAttributes(attribute.String("outcome", string(models.OutcomeAlreadyEnrolled)))
		return &Result{Outcome: models.OutcomeAlreadyEnrolled, Principal: principal, Course: course}, nil
	}

	now := requestcontext.Now(ctx)
	var inserted bool
	err = l.tx.RunInTx(ctx, func(ctx context.Context) error {
		var txErr error
		inserted, txErr = l.store.InsertEnrollment(ctx, userID, courseID, now)
		if txErr != nil || !inserted {
			return txErr
		}
		return l.store.IncrementPurchased(ctx, courseID)
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "enrollment timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record enrollment")
	}

	if !inserted {
		// A concurrent request committed first; reload so the caller sees it.
		l.metrics.IncrementEnrollment(string(models.OutcomeAlreadyEnrolled))
		span.SetAttributes(attribute.String("outcome", string(models.OutcomeAlreadyEnrolled)))
		if reloaded, loadErr := l.LoadPrincipal(ctx, userID); loadErr == nil {
			principal = reloaded
		}
		return &Result{Outcome: models.OutcomeAlreadyEnrolled, Principal: principal, Course: course}, nil
	}

	principal.Courses = append(principal.Courses, authModels.EnrollmentRecord{CourseID: courseID, PurchasedAt: now})
	course.Purchased++

	if err := snapshot.Refresh(ctx, l.sessions, principal); err != nil {
		l.logger.ErrorContext(ctx, "session refresh after enrollment failed",
			"user_id", userID.String(),
			"course_id", courseID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamFailure, "enrollment recorded but session refresh failed")
	}

	l.metrics.IncrementEnrollment(string(models.OutcomeEnrolled))
	span.SetAttributes(attribute.String("outcome", string(models.OutcomeEnrolled)))
	l.logger.InfoContext(ctx, "course enrolled",
		"user_id", userID.String(),
		"course_id", courseID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return &Result{Outcome: models.OutcomeEnrolled, Principal: principal, Course: course}, nil
}

package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"learnhub/internal/auth/device"
	"learnhub/internal/auth/models"
	jwttoken "learnhub/internal/jwt_token"
	"learnhub/internal/platform/metrics"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
	"learnhub/pkg/requestcontext"
)

// TokenVerifier is the slice of the token service the guard needs.
type TokenVerifier interface {
	Verify(token string, kind jwttoken.Kind) (id.UserID, error)
	IssuePair(userID id.UserID) (*jwttoken.TokenPair, error)
}

// SessionStore is the cache of session snapshots keyed by user id. Extend
// restarts the TTL of a live entry and returns it as stored; it must never
// recreate a deleted entry.
type SessionStore interface {
	Get(ctx context.Context, userID id.UserID) (*models.Session, error)
	Extend(ctx context.Context, userID id.UserID, ttl time.Duration) (*models.Session, error)
}

// Guard resolves request credentials into an Outcome.
type Guard struct {
	tokens       TokenVerifier
	sessions     SessionStore
	cookies      *Cookies
	devices      *device.Service
	sessionTTL   time.Duration
	cacheTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

func WithDeviceService(devices *device.Service) Option {
	return func(g *Guard) {
		g.devices = devices
	}
}

// WithCacheTimeout bounds every session lookup.
func WithCacheTimeout(d time.Duration) Option {
	return func(g *Guard) {
		g.cacheTimeout = d
	}
}

func New(tokens TokenVerifier, sessions SessionStore, cookies *Cookies, sessionTTL time.Duration, opts ...Option) (*Guard, error) {
	if tokens == nil {
		return nil, errors.New("token verifier is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cookies == nil {
		return nil, errors.New("cookies are required")
	}
	if sessionTTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	g := &Guard{
		tokens:       tokens,
		sessions:     sessions,
		cookies:      cookies,
		devices:      device.NewService(false),
		sessionTTL:   sessionTTL,
		cacheTimeout: 500 * time.Millisecond,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// ResolveSession reads the access token from the cookie or bearer header and
// returns the cached session. An expired access token falls through to the
// refresh flow.
func (g *Guard) ResolveSession(r *http.Request) Outcome {
	ctx := r.Context()
	token := accessToken(r)
	if token == "" {
		return g.rejected(ctx, reject(dErrors.CodeUnauthorized, "authentication required"))
	}

	userID, err := g.tokens.Verify(token, jwttoken.KindAccess)
	switch {
	case err == nil:
		return g.lookup(ctx, userID)
	case dErrors.HasCode(err, dErrors.CodeSessionExpired):
		return g.Refresh(ctx, refreshToken(r))
	default:
		return g.rejected(ctx, reject(dErrors.CodeInvalidToken, "invalid access token"))
	}
}

// Refresh verifies a refresh token, mints a new pair and restarts the session
// TTL. The snapshot itself is never written here, so a logout or role change
// racing the rotation always wins.
func (g *Guard) Refresh(ctx context.Context, token string) Outcome {
	if token == "" {
		return g.rejected(ctx, reject(dErrors.CodeSessionExpired, "session expired, please login again"))
	}
	userID, err := g.tokens.Verify(token, jwttoken.KindRefresh)
	if err != nil {
		return g.rejected(ctx, reject(dErrors.CodeSessionExpired, "session expired, please login again"))
	}

	sess, rejected := g.session(ctx, userID, func(ctx context.Context) (*models.Session, error) {
		return g.sessions.Extend(ctx, userID, g.sessionTTL)
	})
	if rejected != nil {
		return g.rejected(ctx, rejected)
	}

	if current := g.devices.ComputeFingerprint(requestcontext.UserAgent(ctx)); current != "" {
		if _, drift := g.devices.CompareFingerprints(sess.DeviceFingerprint, current); drift {
			g.logger.InfoContext(ctx, "device fingerprint changed on refresh",
				"user_id", userID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}

	pair, err := g.tokens.IssuePair(userID)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to issue token pair", "error", err, "user_id", userID.String())
		return g.rejected(ctx, reject(dErrors.CodeInternal, "failed to issue tokens"))
	}

	g.metrics.IncrementTokenRotation()

	return &Authenticated{
		Auth:      sess.AuthContext(),
		Principal: sess.Principal(),
		Rotated:   pair,
	}
}

func (g *Guard) lookup(ctx context.Context, userID id.UserID) Outcome {
	sess, rejected := g.session(ctx, userID, func(ctx context.Context) (*models.Session, error) {
		return g.sessions.Get(ctx, userID)
	})
	if rejected != nil {
		return g.rejected(ctx, rejected)
	}
	return &Authenticated{
		Auth:      sess.AuthContext(),
		Principal: sess.Principal(),
	}
}

// session runs fetch under the cache timeout and fails closed: anything other
// than a hit rejects the request.
func (g *Guard) session(ctx context.Context, userID id.UserID, fetch func(context.Context) (*models.Session, error)) (*models.Session, *Rejected) {
	start := time.Now()
	lookupCtx, cancel := context.WithTimeout(ctx, g.cacheTimeout)
	defer cancel()

	sess, err := fetch(lookupCtx)
	g.metrics.ObserveSessionLookup(start)
	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, reject(dErrors.CodeSessionNotFound, "session not found, please login again")
	case errors.Is(err, context.DeadlineExceeded):
		g.logger.WarnContext(ctx, "session lookup timed out",
			"user_id", userID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, reject(dErrors.CodeSessionNotFound, "session not found, please login again")
	default:
		g.logger.ErrorContext(ctx, "session lookup failed",
			"error", err,
			"user_id", userID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, reject(dErrors.CodeUpstreamFailure, "session store unavailable")
	}
}

func (g *Guard) rejected(ctx context.Context, r *Rejected) *Rejected {
	g.metrics.IncrementAuthRejection(string(r.Reason))
	g.logger.DebugContext(ctx, "request rejected by auth guard",
		"reason", string(r.Reason),
		"request_id", requestcontext.RequestID(ctx),
	)
	return r
}

func accessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func refreshToken(r *http.Request) string {
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// RefreshToken exposes the refresh cookie to handlers that drive the refresh
// flow directly.
func RefreshToken(r *http.Request) string {
	return refreshToken(r)
}

package guard

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"learnhub/internal/auth/device"
	"learnhub/internal/auth/models"
	"learnhub/internal/auth/snapshot"
	"learnhub/internal/auth/store/session"
	jwttoken "learnhub/internal/jwt_token"
	"learnhub/internal/platform/config"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
	"learnhub/pkg/requestcontext"
)

const (
	accessTTL  = 5 * time.Minute
	refreshTTL = 72 * time.Hour
	sessionTTL = 7 * 24 * time.Hour
)

type GuardSuite struct {
	suite.Suite
	now      time.Time
	tokens   *jwttoken.JWTService
	sessions *session.InMemorySessionStore
	guard    *Guard
	userID   id.UserID
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}

func (s *GuardSuite) SetupTest() {
	s.now = time.Now().Truncate(time.Second)
	clock := func() time.Time { return s.now }
	s.tokens = jwttoken.NewJWTService("access-secret", "refresh-secret", accessTTL, refreshTTL, jwttoken.WithClock(clock))
	s.sessions = session.New(session.WithClock(clock))
	s.guard = s.newGuard(s.sessions)
	s.userID = id.NewUserID()
}

func (s *GuardSuite) newGuard(store SessionStore) *Guard {
	cookies := NewCookies(config.CookieConfig{SameSite: http.SameSiteLaxMode})
	cookies.now = func() time.Time { return s.now }
	g, err := New(s.tokens, store, cookies, sessionTTL, WithCacheTimeout(50*time.Millisecond))
	s.Require().NoError(err)
	return g
}

func (s *GuardSuite) login(role models.Role) *jwttoken.TokenPair {
	pair, err := s.tokens.IssuePair(s.userID)
	s.Require().NoError(err)
	p := &models.Principal{ID: s.userID, Email: "learner@example.com", Name: "Learner", Role: role}
	s.Require().NoError(s.sessions.Put(context.Background(), s.userID, models.NewSession(p, ""), sessionTTL))
	return pair
}

func request(pair *jwttoken.TokenPair) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if pair != nil {
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: pair.AccessToken})
		req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: pair.RefreshToken})
	}
	return req
}

func (s *GuardSuite) requireRejected(outcome Outcome, reason dErrors.Code) {
	rejected, ok := outcome.(*Rejected)
	s.Require().True(ok, "expected rejection, got %T", outcome)
	s.Equal(reason, rejected.Reason)
}

func (s *GuardSuite) TestNoCredential() {
	s.requireRejected(s.guard.ResolveSession(request(nil)), dErrors.CodeUnauthorized)
}

func (s *GuardSuite) TestInvalidAccessToken() {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "not-a-token"})
	s.requireRejected(s.guard.ResolveSession(req), dErrors.CodeInvalidToken)
}

func (s *GuardSuite) TestValidAccessToken() {
	s.Run("cookie", func() {
		pair := s.login(models.RoleUser)
		outcome, ok := s.guard.ResolveSession(request(pair)).(*Authenticated)
		s.Require().True(ok)
		s.Equal(s.userID, outcome.Auth.UserID)
		s.Equal(models.RoleUser, outcome.Auth.Role)
		s.Nil(outcome.Rotated)
	})

	s.Run("bearer header", func() {
		pair := s.login(models.RoleAdmin)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		outcome, ok := s.guard.ResolveSession(req).(*Authenticated)
		s.Require().True(ok)
		s.Equal(models.RoleAdmin, outcome.Auth.Role)
	})
}

func (s *GuardSuite) TestRevokedSessionRejectsValidToken() {
	pair := s.login(models.RoleUser)
	s.Require().NoError(s.sessions.Delete(context.Background(), s.userID))

	s.requireRejected(s.guard.ResolveSession(request(pair)), dErrors.CodeSessionNotFound)
}

func (s *GuardSuite) TestExpiredAccessRotates() {
	pair := s.login(models.RoleUser)
	s.now = s.now.Add(accessTTL + time.Minute)

	outcome, ok := s.guard.ResolveSession(request(pair)).(*Authenticated)
	s.Require().True(ok)
	s.Require().NotNil(outcome.Rotated)
	s.NotEqual(pair.AccessToken, outcome.Rotated.AccessToken)
	s.Equal(s.userID, outcome.Auth.UserID)

	userID, err := s.tokens.Verify(outcome.Rotated.AccessToken, jwttoken.KindAccess)
	s.Require().NoError(err)
	s.Equal(s.userID, userID)

	// the rewrite restarts the TTL
	s.now = s.now.Add(sessionTTL - time.Minute)
	_, err = s.sessions.Get(context.Background(), s.userID)
	s.NoError(err)
}

func (s *GuardSuite) TestRefreshRejections() {
	s.Run("missing refresh token", func() {
		pair := s.login(models.RoleUser)
		s.now = s.now.Add(accessTTL + time.Minute)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: pair.AccessToken})
		s.requireRejected(s.guard.ResolveSession(req), dErrors.CodeSessionExpired)
	})

	s.Run("expired refresh token", func() {
		pair := s.login(models.RoleUser)
		s.now = s.now.Add(refreshTTL + time.Minute)
		s.requireRejected(s.guard.ResolveSession(request(pair)), dErrors.CodeSessionExpired)
	})

	s.Run("access token presented as refresh token", func() {
		pair := s.login(models.RoleUser)
		s.requireRejected(s.guard.Refresh(context.Background(), pair.AccessToken), dErrors.CodeSessionExpired)
	})

	s.Run("session revoked", func() {
		pair := s.login(models.RoleUser)
		s.Require().NoError(s.sessions.Delete(context.Background(), s.userID))
		s.now = s.now.Add(accessTTL + time.Minute)
		s.requireRejected(s.guard.ResolveSession(request(pair)), dErrors.CodeSessionNotFound)
	})
}

func (s *GuardSuite) TestRotationNeverUndoesConcurrentWrites() {
	ctx := context.Background()

	s.Run("logout before rotation", func() {
		pair := s.login(models.RoleUser)
		g := s.newGuard(racingStore{InMemorySessionStore: s.sessions, before: func() {
			s.Require().NoError(s.sessions.Delete(ctx, s.userID))
		}})

		s.requireRejected(g.Refresh(ctx, pair.RefreshToken), dErrors.CodeSessionNotFound)
		_, err := s.sessions.Get(ctx, s.userID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("logout after rotation", func() {
		pair := s.login(models.RoleUser)
		g := s.newGuard(racingStore{InMemorySessionStore: s.sessions, after: func() {
			s.Require().NoError(s.sessions.Delete(ctx, s.userID))
		}})

		_, ok := g.Refresh(ctx, pair.RefreshToken).(*Authenticated)
		s.Require().True(ok)
		_, err := s.sessions.Get(ctx, s.userID)
		s.ErrorIs(err, sentinel.ErrNotFound, "the old refresh token must stay revoked")
		s.requireRejected(s.guard.Refresh(ctx, pair.RefreshToken), dErrors.CodeSessionNotFound)
	})

	demote := func() {
		p := &models.Principal{ID: s.userID, Email: "learner@example.com", Name: "Learner", Role: models.RoleUser}
		s.Require().NoError(snapshot.Refresh(ctx, s.sessions, p))
	}

	s.Run("demotion before rotation", func() {
		pair := s.login(models.RoleAdmin)
		g := s.newGuard(racingStore{InMemorySessionStore: s.sessions, before: demote})

		outcome, ok := g.Refresh(ctx, pair.RefreshToken).(*Authenticated)
		s.Require().True(ok)
		s.Equal(models.RoleUser, outcome.Auth.Role)
		cached, err := s.sessions.Get(ctx, s.userID)
		s.Require().NoError(err)
		s.Equal(models.RoleUser, cached.Role)
	})

	s.Run("demotion after rotation", func() {
		pair := s.login(models.RoleAdmin)
		g := s.newGuard(racingStore{InMemorySessionStore: s.sessions, after: demote})

		_, ok := g.Refresh(ctx, pair.RefreshToken).(*Authenticated)
		s.Require().True(ok)
		cached, err := s.sessions.Get(ctx, s.userID)
		s.Require().NoError(err)
		s.Equal(models.RoleUser, cached.Role)
	})
}

func (s *GuardSuite) TestRefreshLogsDeviceDrift() {
	var buf bytes.Buffer
	cookies := NewCookies(config.CookieConfig{SameSite: http.SameSiteLaxMode})
	g, err := New(s.tokens, s.sessions, cookies, sessionTTL,
		WithDeviceService(device.NewService(true)),
		WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)
	s.Require().NoError(err)

	devices := device.NewService(true)
	const chromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	const firefoxLinux = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"

	pair, err := s.tokens.IssuePair(s.userID)
	s.Require().NoError(err)
	p := &models.Principal{ID: s.userID, Email: "learner@example.com", Name: "Learner", Role: models.RoleUser}
	fp := devices.ComputeFingerprint(chromeWindows)
	s.Require().NoError(s.sessions.Put(context.Background(), s.userID, models.NewSession(p, fp), sessionTTL))

	s.Run("same device", func() {
		buf.Reset()
		ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.7", chromeWindows)
		_, ok := g.Refresh(ctx, pair.RefreshToken).(*Authenticated)
		s.Require().True(ok)
		s.NotContains(buf.String(), "device fingerprint changed")
	})

	s.Run("different device", func() {
		buf.Reset()
		ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.7", firefoxLinux)
		outcome, ok := g.Refresh(ctx, pair.RefreshToken).(*Authenticated)
		s.Require().True(ok, "drift is logged, not enforced")
		s.Contains(buf.String(), "device fingerprint changed on refresh")
		s.Contains(buf.String(), s.userID.String())

		cached, err := s.sessions.Get(context.Background(), s.userID)
		s.Require().NoError(err)
		s.Equal(fp, cached.DeviceFingerprint)
		s.Equal(s.userID, outcome.Auth.UserID)
	})
}

func (s *GuardSuite) TestCacheFailuresFailClosed() {
	pair := s.login(models.RoleUser)

	s.Run("timeout", func() {
		g := s.newGuard(slowStore{})
		s.requireRejected(g.ResolveSession(request(pair)), dErrors.CodeSessionNotFound)
	})

	s.Run("unreachable", func() {
		g := s.newGuard(failingStore{})
		s.requireRejected(g.ResolveSession(request(pair)), dErrors.CodeUpstreamFailure)
	})
}

func (s *GuardSuite) TestRequireSession() {
	var seen *Authenticated
	handler := s.guard.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AuthenticatedFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	s.Run("rejects with 401", func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(nil))
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Contains(rec.Body.String(), "unauthorized")
	})

	s.Run("writes rotated cookies", func() {
		pair := s.login(models.RoleUser)
		s.now = s.now.Add(accessTTL + time.Minute)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(pair))

		s.Equal(http.StatusNoContent, rec.Code)
		s.Require().NotNil(seen)
		s.Equal(s.userID, seen.Auth.UserID)

		cookies := map[string]*http.Cookie{}
		for _, c := range rec.Result().Cookies() {
			cookies[c.Name] = c
		}
		s.Require().Contains(cookies, AccessTokenCookie)
		s.Require().Contains(cookies, RefreshTokenCookie)
		s.Equal(seen.Rotated.AccessToken, cookies[AccessTokenCookie].Value)
		s.True(cookies[AccessTokenCookie].HttpOnly)
		s.Equal("/", cookies[AccessTokenCookie].Path)
		s.Equal(int(accessTTL.Seconds()), cookies[AccessTokenCookie].MaxAge)
	})
}

func (s *GuardSuite) TestRequireRole() {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := s.guard.RequireSession(RequireRole(models.RoleAdmin)(ok))

	s.Run("user is forbidden", func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(s.login(models.RoleUser)))
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("admin passes", func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(s.login(models.RoleAdmin)))
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("missing auth context", func() {
		rec := httptest.NewRecorder()
		RequireRole(models.RoleAdmin)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

type slowStore struct{}

func (slowStore) Get(ctx context.Context, _ id.UserID) (*models.Session, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowStore) Extend(ctx context.Context, _ id.UserID, _ time.Duration) (*models.Session, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingStore struct{}

func (failingStore) Get(context.Context, id.UserID) (*models.Session, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (failingStore) Extend(context.Context, id.UserID, time.Duration) (*models.Session, error) {
	return nil, errors.New("dial tcp: connection refused")
}

// racingStore runs before and after around Extend to interleave a concurrent
// logout or role change with a rotation.
type racingStore struct {
	*session.InMemorySessionStore
	before func()
	after  func()
}

func (r racingStore) Extend(ctx context.Context, userID id.UserID, ttl time.Duration) (*models.Session, error) {
	if r.before != nil {
		r.before()
	}
	sess, err := r.InMemorySessionStore.Extend(ctx, userID, ttl)
	if r.after != nil {
		r.after()
	}
	return sess, err
}

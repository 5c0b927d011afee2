package jwttoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
)

// Kind separates access tokens from refresh tokens so neither can stand in
// for the other even if secrets were ever shared.
type Kind string

const (
	KindAccess     Kind = "access"
	KindRefresh    Kind = "refresh"
	KindActivation Kind = "activation"
)

var (
	ErrInvalidToken = dErrors.New(dErrors.CodeInvalidToken, "invalid token")
	ErrTokenExpired = dErrors.New(dErrors.CodeSessionExpired, "token has expired")
)

// Claims represents the JWT claims for both token kinds. The subject is the
// principal's user id.
type Claims struct {
	Kind Kind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// JWTService handles token creation and validation. It is purely
// computational; nothing here touches the session cache.
type JWTService struct {
	accessKey     []byte
	refreshKey    []byte
	activationKey []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

type Option func(*JWTService)

// WithClock overrides time.Now for issuance and validation.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		s.now = now
	}
}

func WithIssuer(issuer string) Option {
	return func(s *JWTService) {
		s.issuer = issuer
	}
}

// WithActivationSecret enables account activation tokens.
func WithActivationSecret(secret string) Option {
	return func(s *JWTService) {
		s.activationKey = []byte(secret)
	}
}

func NewJWTService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...Option) *JWTService {
	s := &JWTService{
		accessKey:  []byte(accessSecret),
		refreshKey: []byte(refreshSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     "learnhub",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueAccessToken signs a short-lived access token for userID.
func (s *JWTService) IssueAccessToken(userID id.UserID) (string, time.Time, error) {
	return s.issue(userID, KindAccess, s.accessKey, s.accessTTL)
}

// IssueRefreshToken signs a long-lived refresh token for userID.
func (s *JWTService) IssueRefreshToken(userID id.UserID) (string, time.Time, error) {
	return s.issue(userID, KindRefresh, s.refreshKey, s.refreshTTL)
}

func (s *JWTService) IssuePair(userID id.UserID) (*TokenPair, error) {
	access, accessExp, err := s.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.IssueRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *JWTService) issue(userID id.UserID, kind Kind, key []byte, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signedToken, expiresAt, nil
}

// Verify checks signature, algorithm, kind and expiry. Malformed, mis-signed
// or wrong-kind tokens yield ErrInvalidToken; well-formed expired tokens yield
// ErrTokenExpired.
func (s *JWTService) Verify(tokenString string, kind Kind) (id.UserID, error) {
	key := s.accessKey
	if kind == KindRefresh {
		key = s.refreshKey
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.UserID{}, ErrTokenExpired
		}
		return id.UserID{}, ErrInvalidToken
	}
	if !parsed.Valid {
		return id.UserID{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Kind != kind {
		return id.UserID{}, ErrInvalidToken
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return id.UserID{}, ErrInvalidToken
	}
	return userID, nil
}

package jwttoken

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "learnhub/pkg/domain-errors"
)

// ActivationTTL bounds how long a pending registration can be confirmed.
const ActivationTTL = 5 * time.Minute

var (
	ErrActivationDisabled = errors.New("activation secret not configured")
	ErrInvalidActivation  = dErrors.New(dErrors.CodeBadRequest, "invalid activation token")
	ErrActivationExpired  = dErrors.New(dErrors.CodeBadRequest, "activation token has expired")
	ErrActivationCode     = dErrors.New(dErrors.CodeBadRequest, "invalid activation code")
)

// Registration is the pending account carried inside an activation token.
// The password is already hashed.
type Registration struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash []byte `json:"passwordHash"`
}

// ActivationTicket is handed to the registrant. Code is never embedded in
// Token; only its MAC is.
type ActivationTicket struct {
	Token     string
	Code      string
	ExpiresAt time.Time
}

type activationClaims struct {
	Kind         Kind         `json:"kind"`
	Registration Registration `json:"registration"`
	CodeMAC      string       `json:"codeMac"`
	jwt.RegisteredClaims
}

// IssueActivation signs reg together with a fresh four digit code.
func (s *JWTService) IssueActivation(reg Registration) (*ActivationTicket, error) {
	if len(s.activationKey) == 0 {
		return nil, ErrActivationDisabled
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return nil, fmt.Errorf("generate activation code: %w", err)
	}
	code := fmt.Sprintf("%04d", 1000+n.Int64())

	now := s.now()
	expiresAt := now.Add(ActivationTTL)
	jti := uuid.NewString()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, activationClaims{
		Kind:         KindActivation,
		Registration: reg,
		CodeMAC:      s.codeMAC(jti, code),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reg.Email,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        jti,
		},
	})
	signed, err := token.SignedString(s.activationKey)
	if err != nil {
		return nil, fmt.Errorf("sign activation token: %w", err)
	}
	return &ActivationTicket{Token: signed, Code: code, ExpiresAt: expiresAt}, nil
}

// VerifyActivation returns the pending registration when token is valid and
// code is the one issued with it.
func (s *JWTService) VerifyActivation(tokenString, code string) (*Registration, error) {
	if len(s.activationKey) == 0 {
		return nil, ErrActivationDisabled
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &activationClaims{}, func(token *jwt.Token) (any, error) {
		return s.activationKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrActivationExpired
		}
		return nil, ErrInvalidActivation
	}
	claims, ok := parsed.Claims.(*activationClaims)
	if !ok || !parsed.Valid || claims.Kind != KindActivation {
		return nil, ErrInvalidActivation
	}
	if !hmac.Equal([]byte(claims.CodeMAC), []byte(s.codeMAC(claims.ID, code))) {
		return nil, ErrActivationCode
	}
	return &claims.Registration, nil
}

func (s *JWTService) codeMAC(jti, code string) string {
	mac := hmac.New(sha256.New, s.activationKey)
	mac.Write([]byte(jti + "|" + code))
	return hex.EncodeToString(mac.Sum(nil))
}

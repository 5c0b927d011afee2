package guard

import (
	"learnhub/internal/auth/models"
	jwttoken "learnhub/internal/jwt_token"
	dErrors "learnhub/pkg/domain-errors"
)

// Outcome is the result of resolving a request's credentials: either
// *Authenticated or *Rejected.
type Outcome interface {
	outcome()
}

// Authenticated carries the cached principal. Rotated is non-nil when the
// refresh flow minted a new token pair that must be sent back as cookies.
type Authenticated struct {
	Auth      models.AuthContext
	Principal *models.Principal
	Rotated   *jwttoken.TokenPair
}

// Rejected ends the request with Reason.
type Rejected struct {
	Reason  dErrors.Code
	Message string
}

func (*Authenticated) outcome() {}
func (*Rejected) outcome()      {}

func (r *Rejected) Err() error {
	return dErrors.New(r.Reason, r.Message)
}

func reject(reason dErrors.Code, message string) *Rejected {
	return &Rejected{Reason: reason, Message: message}
}

package guard

import (
	"net/http"
	"time"

	jwttoken "learnhub/internal/jwt_token"
	"learnhub/internal/platform/config"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// Cookies writes and clears the token cookies.
type Cookies struct {
	cfg config.CookieConfig
	now func() time.Time
}

func NewCookies(cfg config.CookieConfig) *Cookies {
	return &Cookies{cfg: cfg, now: time.Now}
}

func (c *Cookies) cookie(name, value string, expires time.Time) *http.Cookie {
	maxAge := int(expires.Sub(c.now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.cfg.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: c.cfg.SameSite,
	}
}

func (c *Cookies) SetTokens(w http.ResponseWriter, pair *jwttoken.TokenPair) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (c *Cookies) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   c.cfg.Domain,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.cfg.Secure,
			SameSite: c.cfg.SameSite,
		})
	}
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"learnhub/internal/auth/guard"
	"learnhub/internal/auth/models"
	"learnhub/internal/auth/service"
	jwttoken "learnhub/internal/jwt_token"
	"learnhub/internal/platform/middleware"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/httputil"
	"learnhub/pkg/requestcontext"
)

// Service is the slice of the auth service the handlers drive.
type Service interface {
	Register(ctx context.Context, req service.RegisterRequest) (*models.Principal, error)
	RequestActivation(ctx context.Context, req service.RegisterRequest) (*jwttoken.ActivationTicket, error)
	ActivateUser(ctx context.Context, token, code string) (*models.Principal, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	SocialAuth(ctx context.Context, req service.SocialAuthRequest) (*service.LoginResult, error)
	Logout(ctx context.Context, userID id.UserID) error
	UpdateUserInfo(ctx context.Context, userID id.UserID, name string) (*models.Principal, error)
	UpdatePassword(ctx context.Context, userID id.UserID, oldPassword, newPassword string) error
	UpdateRole(ctx context.Context, actor models.AuthContext, userID id.UserID, role string) (*models.Principal, error)
	DeleteUser(ctx context.Context, userID id.UserID) error
}

type Handler struct {
	auth    Service
	guard   *guard.Guard
	cookies *guard.Cookies
	logger  *slog.Logger

	requireActivation bool
	socialAuth        bool
}

type Option func(*Handler)

// WithActivation makes /register answer with an activation ticket; the
// account is created by /activate-user.
func WithActivation() Option {
	return func(h *Handler) {
		h.requireActivation = true
	}
}

// WithSocialAuth mounts /social-auth. The route trusts the identity the client
// reports, so it stays off unless a provider check sits in front of it.
func WithSocialAuth() Option {
	return func(h *Handler) {
		h.socialAuth = true
	}
}

func New(auth Service, g *guard.Guard, cookies *guard.Cookies, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{auth: auth, guard: g, cookies: cookies, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public and session-protected auth routes.
func (h *Handler) Register(r chi.Router) {
	r.With(middleware.ContentTypeJSON).Post("/register", h.handleRegister)
	r.With(middleware.ContentTypeJSON).Post("/activate-user", h.handleActivateUser)
	r.With(middleware.ContentTypeJSON).Post("/login", h.handleLogin)
	if h.socialAuth {
		r.With(middleware.ContentTypeJSON).Post("/social-auth", h.handleSocialAuth)
	}
	r.Get("/refresh", h.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireSession)
		r.Get("/me", h.handleMe)
		r.Get("/logout", h.handleLogout)
		r.With(middleware.ContentTypeJSON).Put("/update-user-info", h.handleUpdateUserInfo)
		r.With(middleware.ContentTypeJSON).Put("/update-user-password", h.handleUpdatePassword)

		r.Group(func(r chi.Router) {
			r.Use(guard.RequireRole(models.RoleAdmin))
			r.With(middleware.ContentTypeJSON).Put("/update-user", h.handleUpdateRole)
			r.Delete("/delete-user/{id}", h.handleDeleteUser)
		})
	})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type activationRequest struct {
	Token string `json:"activation_token"`
	Code  string `json:"activation_code"`
}

type socialAuthRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type updateUserInfoRequest struct {
	Name string `json:"name"`
}

type updatePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateRoleRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type userResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	User    *models.Principal `json:"user,omitempty"`
}

type tokenResponse struct {
	Success     bool              `json:"success"`
	AccessToken string            `json:"accessToken"`
	User        *models.Principal `json:"user,omitempty"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// The code is returned to the caller because outbound email is not part of
// this service.
type activationResponse struct {
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	ActivationToken string    `json:"activationToken"`
	ActivationCode  string    `json:"activationCode"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !govalidator.StringLength(req.Name, "1", "100") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "please enter your name"))
		return
	}
	if !govalidator.StringLength(req.Email, "1", "255") || !govalidator.IsEmail(req.Email) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "please enter a valid email"))
		return
	}

	registration := service.RegisterRequest{Name: req.Name, Email: req.Email, Password: req.Password}
	if h.requireActivation {
		ticket, err := h.auth.RequestActivation(ctx, registration)
		if err != nil {
			h.logFailure(ctx, "registration failed", err)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, activationResponse{
			Success:         true,
			Message:         "Please activate your account with the code issued for " + req.Email,
			ActivationToken: ticket.Token,
			ActivationCode:  ticket.Code,
			ExpiresAt:       ticket.ExpiresAt,
		})
		return
	}

	p, err := h.auth.Register(ctx, registration)
	if err != nil {
		h.logFailure(ctx, "registration failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, userResponse{Success: true, User: p})
}

func (h *Handler) handleActivateUser(w http.ResponseWriter, r *http.Request) {
	var req activationRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.auth.ActivateUser(r.Context(), req.Token, req.Code)
	if err != nil {
		h.logFailure(r.Context(), "activation failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, userResponse{Success: true, User: p})
}

func (h *Handler) handleSocialAuth(w http.ResponseWriter, r *http.Request) {
	var req socialAuthRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !govalidator.StringLength(req.Email, "1", "255") || !govalidator.IsEmail(req.Email) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "please enter a valid email"))
		return
	}

	result, err := h.auth.SocialAuth(r.Context(), service.SocialAuthRequest{Name: req.Name, Email: req.Email})
	if err != nil {
		h.logFailure(r.Context(), "social sign-in failed", err)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	h.cookies.SetTokens(w, result.Tokens)
	httputil.WriteJSON(w, status, tokenResponse{
		Success:     true,
		AccessToken: result.Tokens.AccessToken,
		User:        result.Principal,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logFailure(ctx, "login failed", err)
		httputil.WriteError(w, err)
		return
	}
	h.cookies.SetTokens(w, result.Tokens)
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		Success:     true,
		AccessToken: result.Tokens.AccessToken,
		User:        result.Principal,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	switch outcome := h.guard.Refresh(r.Context(), guard.RefreshToken(r)).(type) {
	case *guard.Authenticated:
		h.cookies.SetTokens(w, outcome.Rotated)
		httputil.WriteJSON(w, http.StatusOK, tokenResponse{Success: true, AccessToken: outcome.Rotated.AccessToken})
	case *guard.Rejected:
		httputil.WriteError(w, outcome.Err())
	}
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	a, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, userResponse{Success: true, User: a.Principal})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	a, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	if err := h.auth.Logout(r.Context(), a.Auth.UserID); err != nil {
		h.logFailure(r.Context(), "logout failed", err)
		httputil.WriteError(w, err)
		return
	}
	h.cookies.Clear(w)
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Logged out successfully"})
}

func (h *Handler) handleUpdateUserInfo(w http.ResponseWriter, r *http.Request) {
	a, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	var req updateUserInfoRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !govalidator.StringLength(req.Name, "1", "100") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "please enter your name"))
		return
	}

	p, err := h.auth.UpdateUserInfo(r.Context(), a.Auth.UserID, req.Name)
	if err != nil {
		h.logFailure(r.Context(), "update user info failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, userResponse{Success: true, Message: "User info updated successfully", User: p})
}

func (h *Handler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	a, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	var req updatePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.auth.UpdatePassword(r.Context(), a.Auth.UserID, req.OldPassword, req.NewPassword); err != nil {
		h.logFailure(r.Context(), "update password failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Password updated successfully"})
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	a, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid userId"))
		return
	}

	p, err := h.auth.UpdateRole(r.Context(), a.Auth, userID, req.Role)
	if err != nil {
		h.logFailure(r.Context(), "update role failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, userResponse{Success: true, User: p})
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid user id"))
		return
	}
	if err := h.auth.DeleteUser(r.Context(), userID); err != nil {
		h.logFailure(r.Context(), "delete user failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "User deleted successfully"})
}

// authenticated returns the guard outcome stored by RequireSession.
func (h *Handler) authenticated(w http.ResponseWriter, r *http.Request) (*guard.Authenticated, bool) {
	a, ok := guard.AuthenticatedFrom(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "auth context missing despite session middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return nil, false
	}
	return a, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	}
	if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.HasCode(err, dErrors.CodeUpstreamFailure) {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}

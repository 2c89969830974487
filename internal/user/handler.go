package user

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/auth"
)

// Handler exposes HTTP endpoints for registration, sessions and account
// management.
type Handler struct {
	svc          *UserService
	sessions     *auth.Issuer
	cookieSecure bool
	logger       *zap.SugaredLogger
}

func NewHandler(svc *UserService, sessions *auth.Issuer, cookieSecure bool, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, cookieSecure: cookieSecure, logger: logger}
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := apperr.DecodeJSON(w, r, &req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		apperr.Write(w, h.logger, apperr.Validation("invalid payload"))
		return
	}
	a, err := h.svc.Register(r.Context(), req)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	h.logger.Infow("user registered", "id", a.ID, "username", a.Username, "role", a.Role)
	apperr.WriteJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully"})
}

// LoginRequest login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message string    `json:"message"`
	Token   string    `json:"token"`
	User    LoginUser `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := apperr.DecodeJSON(w, r, &req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		apperr.Write(w, h.logger, apperr.Validation("invalid payload"))
		return
	}
	res, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(time.Until(res.ExpiresAt).Seconds()),
	})
	apperr.WriteJSON(w, http.StatusOK, LoginResponse{Message: "Login successful", Token: res.Token, User: res.User})
}

// Logout clears the cookie and, when the presented token still verifies,
// revokes it so it cannot be replayed before expiry.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if tok := auth.TokenFromRequest(r); tok != "" && h.sessions != nil {
		if claims, err := h.sessions.Verify(r.Context(), tok); err == nil {
			if err := h.sessions.Revoke(r.Context(), claims); err != nil {
				h.logger.Warnw("token revoke failed", "err", err, "username", claims.Username)
			}
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	apperr.WriteJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		apperr.Write(w, h.logger, apperr.Unauthenticated("Unauthorized: User not found in request."))
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]string{"username": claims.Username})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.GetAccount(r.Context(), r.PathValue("username"))
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListAccounts(r.Context())
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, out)
}

type updateResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateInput
	if err := apperr.DecodeJSON(w, r, &req); err != nil {
		h.logger.Debugw("invalid update payload", "err", err)
		apperr.Write(w, h.logger, apperr.Validation("invalid payload"))
		return
	}
	actor, _ := auth.ClaimsFromContext(r.Context())
	token, err := h.svc.UpdateAccount(r.Context(), actor, r.PathValue("username"), req)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, updateResponse{Message: "User details updated successfully", Token: token})
}

type deleteRequest struct {
	UserIDs []int64 `json:"userIds"`
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := apperr.DecodeJSON(w, r, &req); err != nil {
		h.logger.Debugw("invalid delete payload", "err", err)
		apperr.Write(w, h.logger, ErrNoIDs)
		return
	}
	actor, _ := auth.ClaimsFromContext(r.Context())
	n, err := h.svc.DeleteAccounts(r.Context(), actor, req.UserIDs)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	h.logger.Infow("users deleted", "ids", req.UserIDs, "rows", n, "by", actor.Username)
	apperr.WriteJSON(w, http.StatusOK, messageResponse{Message: "Users deleted successfully"})
}

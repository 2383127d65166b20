package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vaughan-dsouza/taskboard/internal/apperr"
	"github.com/vaughan-dsouza/taskboard/internal/config"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
	"github.com/vaughan-dsouza/taskboard/internal/middleware"
	"github.com/vaughan-dsouza/taskboard/internal/models"
	"github.com/vaughan-dsouza/taskboard/internal/service"
	"github.com/vaughan-dsouza/taskboard/internal/session"
	"github.com/vaughan-dsouza/taskboard/internal/utils"
)

type AuthHandler struct {
	Users   *service.UserService
	Carrier session.Carrier
	Logger  logging.Logger
}

func NewAuthHandler(users *service.UserService, carrier session.Carrier, logger logging.Logger) *AuthHandler {
	return &AuthHandler{Users: users, Carrier: carrier, Logger: logger}
}

// ----------- Response DTOs -------------

// sessionResp is the login/register body. Token is only present in bearer
// mode; in cookie mode it travels in the cookie and nowhere else.
type sessionResp struct {
	models.UserSummary
	SessionMode config.SessionMode `json:"session_mode"`
	Token       string             `json:"token,omitempty"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	utils.WriteError(w, r, h.Logger, err)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, status int, s *service.Session) {
	resp := sessionResp{
		UserSummary: s.User.Summary(),
		SessionMode: h.Carrier.Mode(),
	}
	if h.Carrier.Mode() == config.SessionBearer {
		resp.Token = s.Token
		resp.ExpiresAt = &s.ExpiresAt
	}
	h.Carrier.Set(w, s.Token, s.ExpiresAt)
	utils.JSON(w, status, resp)
}

func currentUser(r *http.Request) (*models.User, error) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return nil, apperr.Unauthorized("not authorized, please login")
	}
	return u, nil
}

// -------------- REGISTER ----------------------

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	s, err := h.Users.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.startSession(w, http.StatusCreated, s)
}

// -------------- LOGIN ------------------------

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	s, err := h.Users.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.startSession(w, http.StatusOK, s)
}

// -------------- LOGOUT -----------------------

// Logout clears the cookie in cookie mode. Bearer tokens stay valid until
// they expire; the client is expected to drop its copy.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Carrier.Clear(w)
	utils.Message(w, http.StatusOK, "successfully logged out")
}

// -------------- LOGIN STATUS -----------------

func (h *AuthHandler) LoginStatus(w http.ResponseWriter, r *http.Request) {
	token, err := h.Carrier.Extract(r)
	if err != nil {
		utils.JSON(w, http.StatusOK, false)
		return
	}
	utils.JSON(w, http.StatusOK, h.Users.LoginStatus(r.Context(), token))
}

// -------------- PROFILE (protected) ----------

func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, u.Summary())
}

func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	u, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req service.UpdateProfileInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	updated, err := h.Users.UpdateProfile(r.Context(), u.ID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, updated.Summary())
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req service.ChangePasswordInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	if err := h.Users.ChangePassword(r.Context(), u.ID, req); err != nil {
		h.fail(w, r, err)
		return
	}
	utils.Message(w, http.StatusOK, "password changed successfully")
}

// -------------- EMAIL VERIFICATION -----------

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	u, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.Users.RequestVerification(r.Context(), u.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	utils.Message(w, http.StatusOK, "verification email sent")
}

func (h *AuthHandler) VerifyUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.VerifyUser(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, u.Summary())
}

// -------------- PASSWORD RESET ---------------

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ForgotPasswordInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	if err := h.Users.RequestPasswordReset(r.Context(), req); err != nil {
		h.fail(w, r, err)
		return
	}
	utils.Message(w, http.StatusOK, "if an account exists for that email, a reset link has been sent")
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ResetPasswordInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	if err := h.Users.ResetPassword(r.Context(), chi.URLParam(r, "token"), req); err != nil {
		h.fail(w, r, err)
		return
	}
	utils.Message(w, http.StatusOK, "password reset successful, please login")
}

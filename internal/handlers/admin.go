package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vaughan-dsouza/taskboard/internal/apperr"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
	"github.com/vaughan-dsouza/taskboard/internal/models"
	"github.com/vaughan-dsouza/taskboard/internal/service"
	"github.com/vaughan-dsouza/taskboard/internal/utils"
)

// AdminHandler serves the user-management routes. Role checks happen in
// the router.
type AdminHandler struct {
	Users  *service.UserService
	Logger logging.Logger
}

func NewAdminHandler(users *service.UserService, logger logging.Logger) *AdminHandler {
	return &AdminHandler{Users: users, Logger: logger}
}

// ---------------------- LIST ----------------------

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		utils.WriteError(w, r, h.Logger, err)
		return
	}

	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	utils.JSON(w, http.StatusOK, out)
}

// ---------------------- DELETE ----------------------

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, r, h.Logger, apperr.Validation("invalid user id"))
		return
	}

	if err := h.Users.DeleteUser(r.Context(), id); err != nil {
		utils.WriteError(w, r, h.Logger, err)
		return
	}
	utils.Message(w, http.StatusOK, "user deleted successfully")
}

package handlers

import (
	"github.com/vaughan-dsouza/taskboard/internal/logging"
	"github.com/vaughan-dsouza/taskboard/internal/service"
	"github.com/vaughan-dsouza/taskboard/internal/session"
)

type Handler struct {
	Auth  *AuthHandler
	Admin *AdminHandler
}

func NewHandler(users *service.UserService, carrier session.Carrier, logger logging.Logger) *Handler {
	return &Handler{
		Auth:  NewAuthHandler(users, carrier, logger),
		Admin: NewAdminHandler(users, logger),
	}
}

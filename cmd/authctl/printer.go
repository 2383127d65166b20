package main

import (
	"fmt"
	"io"

	"github.com/vaughan-dsouza/taskboard/internal/models"
)

func printUser(w io.Writer, u *models.UserSummary) {
	if u == nil {
		return
	}
	verified := "unverified"
	if u.IsVerified {
		verified = "verified"
	}
	fmt.Fprintf(w, "%s <%s>\nid:   %s\nrole: %s (%s)\n", u.Name, u.Email, u.ID, u.Role, verified)
	if u.Bio != "" {
		fmt.Fprintf(w, "bio:  %s\n", u.Bio)
	}
}

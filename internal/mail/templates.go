package mail

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

type linkData struct {
	Name string
	Link string
}

// VerificationEmail builds the email-verification message.
func VerificationEmail(to, name, link string) (Message, error) {
	return build(to, "Verify your email", "verify_email.tmpl", linkData{Name: name, Link: link})
}

// PasswordResetEmail builds the password-reset message.
func PasswordResetEmail(to, name, link string) (Message, error) {
	return build(to, "Reset your password", "reset_password.tmpl", linkData{Name: name, Link: link})
}

func build(to, subject, tmpl string, data linkData) (Message, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		return Message{}, fmt.Errorf("mail: render %s: %w", tmpl, err)
	}
	return Message{To: to, Subject: subject, Body: buf.String()}, nil
}

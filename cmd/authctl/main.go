// Command authctl is a terminal front end for the auth API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vaughan-dsouza/taskboard/internal/client"
	"github.com/vaughan-dsouza/taskboard/internal/config"
	"golang.org/x/term"
)

const usage = `usage: authctl [flags] <command> [args]

commands:
  register <name> <email>   create an account and sign in
  login <email>             sign in
  logout                    sign out and forget the stored session
  status                    report whether the stored session is valid
  whoami                    print the signed-in user
  update [-name n] [-bio b] [-photo url]
  change-password
  verify-email              email a verification link
  verify <token>            redeem a verification token
  forgot <email>            email a password reset link
  reset <token>             set a new password with a reset token
  users                     list users (creator, admin)
  delete <user-id>          delete a user (admin)

flags:
`

// prompter reads passwords without echo from a terminal, or line by line
// from anything else (pipes, tests).
type prompter struct {
	out  io.Writer
	tty  int
	line *bufio.Reader
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{out: out, tty: -1, line: bufio.NewReader(in)}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty = int(f.Fd())
	}
	return p
}

func (p *prompter) password(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if p.tty >= 0 {
		b, err := term.ReadPassword(p.tty)
		fmt.Fprintln(p.out)
		return string(b), err
	}
	line, err := p.line.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	fmt.Fprintln(p.out)
	return strings.TrimRight(line, "\r\n"), nil
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "authctl: %v\n", err)
		os.Exit(1)
	}
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "taskboard", "session.json")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("url", envOr("TASKBOARD_URL", "http://localhost:8000"), "API base URL")
	mode := fs.String("mode", envOr("TASKBOARD_SESSION_MODE", string(config.SessionCookie)), "session mode of the server: cookie or bearer")
	tokenFile := fs.String("token-file", envOr("TASKBOARD_TOKEN_FILE", defaultTokenFile()), "where the session token is kept")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	api, err := client.New(*baseURL, config.SessionMode(*mode), client.NewFileTokenStore(*tokenFile))
	if err != nil {
		return err
	}
	sess := client.NewSession(api)
	prompt := newPrompter(stdin, stdout)

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	need := func(n int, what string) error {
		if len(rest) != n {
			return fmt.Errorf("%s: expected %s", cmd, what)
		}
		return nil
	}

	switch cmd {
	case "register":
		if err := need(2, "<name> <email>"); err != nil {
			return err
		}
		pw, err := prompt.password("Password: ")
		if err != nil {
			return err
		}
		if err := sess.Register(ctx, rest[0], rest[1], pw); err != nil {
			return err
		}
		printUser(stdout, sess.State().User)

	case "login":
		if err := need(1, "<email>"); err != nil {
			return err
		}
		pw, err := prompt.password("Password: ")
		if err != nil {
			return err
		}
		if err := sess.Login(ctx, rest[0], pw); err != nil {
			return err
		}
		printUser(stdout, sess.State().User)

	case "logout":
		if err := sess.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "logged out")

	case "status":
		if err := sess.Hydrate(ctx); err != nil {
			return err
		}
		if sess.State().LoggedIn {
			fmt.Fprintln(stdout, "logged in")
		} else {
			fmt.Fprintln(stdout, "logged out")
		}

	case "whoami":
		if err := sess.Hydrate(ctx); err != nil {
			return err
		}
		st := sess.State()
		if !st.LoggedIn {
			return errors.New("not logged in")
		}
		printUser(stdout, st.User)

	case "update":
		ufs := flag.NewFlagSet("update", flag.ContinueOnError)
		ufs.SetOutput(stderr)
		name := ufs.String("name", "", "display name")
		bio := ufs.String("bio", "", "short bio")
		photo := ufs.String("photo", "", "photo URL")
		if err := ufs.Parse(rest); err != nil {
			return err
		}
		var upd client.ProfileUpdate
		ufs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "name":
				upd.Name = name
			case "bio":
				upd.Bio = bio
			case "photo":
				upd.Photo = photo
			}
		})
		if err := sess.UpdateProfile(ctx, upd); err != nil {
			return err
		}
		printUser(stdout, sess.State().User)

	case "change-password":
		current, err := prompt.password("Current password: ")
		if err != nil {
			return err
		}
		next, err := prompt.password("New password: ")
		if err != nil {
			return err
		}
		if err := sess.ChangePassword(ctx, current, next); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "password changed")

	case "verify-email":
		if err := sess.RequestVerification(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "verification email sent")

	case "verify":
		if err := need(1, "<token>"); err != nil {
			return err
		}
		if err := sess.VerifyUser(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "email verified")

	case "forgot":
		if err := need(1, "<email>"); err != nil {
			return err
		}
		if err := sess.ForgotPassword(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "if that account exists, a reset link is on its way")

	case "reset":
		if err := need(1, "<token>"); err != nil {
			return err
		}
		pw, err := prompt.password("New password: ")
		if err != nil {
			return err
		}
		if err := sess.ResetPassword(ctx, rest[0], pw); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "password reset, please login")

	case "users":
		if err := sess.RefreshUsers(ctx); err != nil {
			return err
		}
		for _, u := range sess.State().AllUsers {
			fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.Name)
		}

	case "delete":
		if err := need(1, "<user-id>"); err != nil {
			return err
		}
		id, err := uuid.Parse(rest[0])
		if err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		if err := sess.DeleteUser(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "user deleted")

	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

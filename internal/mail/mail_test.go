package mail

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaughan-dsouza/taskboard/internal/config"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
	gomail "github.com/wneessen/go-mail"
)

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 2525, "user", "pass", "from@example.com")

	var gotAddr string
	var gotMsg bytes.Buffer
	var gotTo []string
	m.send = func(ctx context.Context, c *gomail.Client, gm *gomail.Msg) error {
		gotAddr = c.ServerAddr()
		var err error
		gotTo, err = gm.GetRecipients()
		require.NoError(t, err)
		_, err = gm.WriteTo(&gotMsg)
		return err
	}

	err := m.Send(context.Background(), Message{To: "a@x.com", Subject: "Hi", Body: "line1\nline2"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, []string{"a@x.com"}, gotTo)
	raw := gotMsg.String()
	assert.Contains(t, raw, "Subject: Hi")
	assert.Contains(t, raw, "from@example.com")
	assert.Contains(t, raw, "line1")
	assert.Contains(t, raw, "line2")
}

func TestSMTPMailer_SendError(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 25, "", "", "from@example.com")
	m.send = func(context.Context, *gomail.Client, *gomail.Msg) error { return errors.New("refused") }

	err := m.Send(context.Background(), Message{To: "a@x.com"})
	assert.ErrorContains(t, err, "refused")
}

func TestSMTPMailer_RejectsBadAddress(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 25, "", "", "from@example.com")
	m.send = func(context.Context, *gomail.Client, *gomail.Msg) error {
		t.Fatal("send must not be reached")
		return nil
	}

	err := m.Send(context.Background(), Message{To: "not an address"})
	assert.Error(t, err)
}

func TestLogMailer_KeepsLinksOutOfInfoLogs(t *testing.T) {
	const link = "https://app/reset-password/deadbeef"

	var info bytes.Buffer
	m := &LogMailer{Logger: logging.New(&info, "info")}
	require.NoError(t, m.Send(context.Background(), Message{To: "a@x.com", Subject: "Reset", Body: link}))
	assert.Contains(t, info.String(), "a@x.com")
	assert.NotContains(t, info.String(), "deadbeef")

	var debug bytes.Buffer
	m = &LogMailer{Logger: logging.New(&debug, "debug")}
	require.NoError(t, m.Send(context.Background(), Message{To: "a@x.com", Subject: "Reset", Body: link}))
	assert.Contains(t, debug.String(), "deadbeef")
}

func TestNew_SelectsByMode(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	_, err := New(context.Background(), cfg, logging.Discard())
	assert.Error(t, err, "smtp mode without a host")

	cfg.SMTPHost = "smtp.example.com"
	m, err := New(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	var logs bytes.Buffer
	cfg.MailMode = config.MailLog
	m, err = New(context.Background(), cfg, logging.New(&logs, "info"))
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)
	assert.Contains(t, logs.String(), "MAIL_MODE=log")

	cfg.MailMode = "pigeon"
	_, err = New(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingMailer) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func TestAsync_DeliversInBackground(t *testing.T) {
	rec := &recordingMailer{err: errors.New("smtp down")}
	a := NewAsync(rec, logging.Discard(), time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	a.done = wg.Done

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Send(ctx, Message{To: "a@x.com"}))
	cancel()
	wg.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.sent, 1)
	assert.Equal(t, "a@x.com", rec.sent[0].To)
}

func TestTemplates(t *testing.T) {
	msg, err := PasswordResetEmail("a@x.com", "Ann", "https://app/reset-password/abc")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", msg.To)
	assert.Contains(t, msg.Body, "Hello Ann")
	assert.Contains(t, msg.Body, "https://app/reset-password/abc")

	msg, err = VerificationEmail("b@x.com", "", "https://app/verify-email/xyz")
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "Hello there")
	assert.Contains(t, msg.Body, "https://app/verify-email/xyz")
}

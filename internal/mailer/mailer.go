package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// SMTPMailer delivers the regenerated password over plain SMTP. Auth is
// optional so it also works against a local relay.
type SMTPMailer struct {
	addr     string
	from     string
	username string
	password string
}

func NewSMTPMailer(addr, from, username, password string) *SMTPMailer {
	return &SMTPMailer{addr: addr, from: from, username: username, password: password}
}

func (m *SMTPMailer) SendNewPassword(ctx context.Context, to, username, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your new password\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Hello %s,\r\n\r\n", username)
	fmt.Fprintf(&b, "Your password has been reset. Your new password is:\r\n\r\n%s\r\n\r\n", password)
	b.WriteString("All existing sessions have been signed out.\r\n")

	var auth smtp.Auth
	if m.username != "" {
		host := m.addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.username, m.password, host)
	}
	if err := smtp.SendMail(m.addr, auth, m.from, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogMailer is the dev backend: it records that a delivery happened without
// ever logging the password itself.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendNewPassword(ctx context.Context, to, username, _ string) error {
	m.logger.InfoContext(ctx, "new password mail", "to", to, "username", username)
	return nil
}

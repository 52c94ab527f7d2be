package service

import (
	"context"
	"fmt"
	"net/smtp"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pageza/extended-accounts/backend/config"
)

// Mailer delivers a single plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through an SMTP relay. Without a configured host the
// message is logged instead.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	log      *zap.SugaredLogger
}

func NewSMTPMailer(cfg *config.Config, log *zap.SugaredLogger) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.EmailFrom,
		log:      log,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.host == "" || m.port == "" {
		m.log.Infow("SMTP not configured, logging email", "to", to, "subject", subject, "body", body)
		return nil
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n", to, m.from, subject, body))

	addr := m.host + ":" + m.port
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.log.Debugw("email sent", "to", to, "subject", subject)
	return nil
}

// ConfirmationURL builds the link a new account follows to activate itself.
func ConfirmationURL(baseURL, username, token string) string {
	return fmt.Sprintf("%s/api/v1/accounts/confirm/%s/%s",
		strings.TrimRight(baseURL, "/"), url.PathEscape(username), url.PathEscape(token))
}

// SendConfirmation mails the activation link for account.
func SendConfirmation(ctx context.Context, mailer Mailer, baseURL string, account *Account, token string) error {
	name := account.Identity.Username
	if account.Profile != nil && account.Profile.FirstName != "" {
		name = cases.Title(language.English).String(account.Profile.FirstName)
	}
	link := ConfirmationURL(baseURL, account.Identity.Username, token)
	body := fmt.Sprintf("Hi %s,\n\n"+
		"Please confirm your account by following this link:\n\n%s\n\n"+
		"The link expires in %d minutes. Unconfirmed accounts are removed automatically.\n",
		name, link, int(ConfirmationTTL.Minutes()))
	return mailer.Send(ctx, account.Identity.Email, "Confirm your account", body)
}

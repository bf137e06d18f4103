// Package notify delivers one-time codes to users out of band.
package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password-reset"
	PurposeEmailVerify   Purpose = "email-verification"
	PurposeDelivery      Purpose = "delivery-confirmation"
)

func (p Purpose) subject() string {
	switch p {
	case PurposeRegistration:
		return "Your registration code"
	case PurposePasswordReset:
		return "Reset your password"
	case PurposeEmailVerify:
		return "Verify your email"
	case PurposeDelivery:
		return "Your delivery code"
	}
	return "Your verification code"
}

// Notifier sends a code to an address. Callers decide whether a failure matters.
type Notifier interface {
	SendOTP(ctx context.Context, to string, purpose Purpose, code string, expiresAt time.Time) error
}

// LogNotifier writes codes to the log instead of sending them. Used in development.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n LogNotifier) SendOTP(_ context.Context, to string, purpose Purpose, code string, expiresAt time.Time) error {
	n.Log.WithFields(logrus.Fields{
		"to":         to,
		"purpose":    purpose,
		"code":       code,
		"expires_at": expiresAt.Format(time.RFC3339),
	}).Info("otp issued")
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends codes as plain-text email
type SMTPNotifier struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail}
}

func (n *SMTPNotifier) SendOTP(ctx context.Context, to string, purpose Purpose, code string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if err := n.send(addr, auth, n.cfg.From, []string{to}, buildMessage(n.cfg.From, to, purpose, code, expiresAt)); err != nil {
		return fmt.Errorf("notify: smtp send to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to string, purpose Purpose, code string, expiresAt time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", purpose.subject())
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	fmt.Fprintf(&b, "Your code is %s.\r\n", code)
	fmt.Fprintf(&b, "It expires in %d minutes.\r\n", int(time.Until(expiresAt).Round(time.Minute).Minutes()))
	return []byte(b.String())
}

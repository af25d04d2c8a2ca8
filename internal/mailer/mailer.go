// Package mailer implements the §6 "email sender" external collaborator:
// a plain net/smtp sender for the Invite Flow (§4.J).
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Config is the SMTP connection the Sender dials.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	UseTLS   bool
}

// Message is one outbound email.
type Message struct {
	To       string
	Subject  string
	BodyHTML string
}

// Sender delivers Messages via SMTP.
type Sender struct {
	Config  Config
	Timeout time.Duration
}

func NewSender(cfg Config) *Sender {
	return &Sender{Config: cfg, Timeout: 30 * time.Second}
}

// Send dials the configured SMTP server and delivers msg.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	body := s.buildMessage(msg)
	return s.sendSMTP(ctx, msg.To, body)
}

func (s *Sender) buildMessage(msg Message) string {
	var b strings.Builder
	fromName := s.Config.FromName
	if fromName == "" {
		fromName = "Rooms"
	}
	b.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, s.Config.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.BodyHTML)
	return b.String()
}

func (s *Sender) sendSMTP(ctx context.Context, to, body string) error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)

	dialer := &net.Dialer{Timeout: s.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mailer: failed to connect: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.Config.Host)
	if err != nil {
		return fmt.Errorf("mailer: failed to create client: %w", err)
	}
	defer client.Close()

	if s.Config.UseTLS {
		tlsCfg := &tls.Config{ServerName: s.Config.Host, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("mailer: failed to start TLS: %w", err)
		}
	}

	if s.Config.User != "" && s.Config.Password != "" {
		auth := smtp.PlainAuth("", s.Config.User, s.Config.Password, s.Config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("mailer: authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.Config.From); err != nil {
		return fmt.Errorf("mailer: failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("mailer: failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("mailer: failed to open message: %w", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return fmt.Errorf("mailer: failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mailer: failed to close message: %w", err)
	}

	return client.Quit()
}

// Package email is the outbound delivery channel for login codes. The core
// only sees the Sender capability; the SMTP transport is one implementation.
package email

import (
	"fmt"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/wneessen/go-mail"
)

type Sender interface {
	Send(to, subject, body string) error
}

// LoginCodeMessage composes the message that carries a login code.
func LoginCodeMessage(code string, expiry time.Duration) (subject, body string) {
	subject = fmt.Sprintf("%v is your hireloop login code", code)
	body = fmt.Sprintf("Your login code is %v\n\nIt expires in %v minutes. If you didn't request this, you can ignore this email.\n", code, int(expiry.Minutes()))
	return subject, body
}

// SMTPSender delivers via an SMTP relay.
type SMTPSender struct {
	client *mail.Client
	from   string
}

func NewSMTPSender(host string, port int, username, password, from string) (*SMTPSender, error) {
	if port == 0 {
		port = 587
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}
	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("Failed to create SMTP client for %v: %w", host, err)
	}
	return &SMTPSender{
		client: client,
		from:   from,
	}, nil
}

func (s *SMTPSender) Send(to, subject, body string) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return err
	}
	if err := m.To(to); err != nil {
		return err
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)
	return s.client.DialAndSend(m)
}

// LogSender writes messages to the log instead of delivering them. Used in
// dev mode (no SMTP config) and in tests.
type LogSender struct {
	Log  logs.Log
	Sent []SentMessage
}

type SentMessage struct {
	To      string
	Subject string
	Body    string
}

func NewLogSender(log logs.Log) *LogSender {
	return &LogSender{Log: log}
}

func (s *LogSender) Send(to, subject, body string) error {
	s.Sent = append(s.Sent, SentMessage{To: to, Subject: subject, Body: body})
	s.Log.Infof("Email to %v: %v", to, subject)
	return nil
}

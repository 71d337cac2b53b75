// Package mail delivers plain-text account mail over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPMailer sends mail through a single SMTP relay configured at startup.
// It satisfies auth.Mailer.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTP constructs an SMTPMailer. Username and password are optional; when
// empty the relay is used unauthenticated.
func NewSMTP(host string, port int, username, password, from string) (*SMTPMailer, error) {
	host = strings.TrimSpace(host)
	from = strings.TrimSpace(from)
	if host == "" {
		return nil, errors.New("mail: smtp host is required")
	}
	if port <= 0 {
		return nil, errors.New("mail: smtp port must be positive")
	}
	if from == "" {
		return nil, errors.New("mail: sender address is required")
	}
	m := &SMTPMailer{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		from: from,
	}
	if username != "" {
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	return m, nil
}

// Send delivers a single plain-text message. The request waits for
// send-or-fail; there is no queueing.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("mail: recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.from, to, subject, body)
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

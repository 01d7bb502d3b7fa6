package service

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// MailDialer is satisfied by *gomail.Dialer
type MailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailNotifier mails each completed link to the admins
type MailNotifier struct {
	dialer  MailDialer
	from    string
	to      string
	service string
}

func NewMailNotifier(host string, port int, username, password, from, to, service string) *MailNotifier {
	if username == "" {
		username = from
	}

	return &MailNotifier{
		dialer:  gomail.NewDialer(host, port, username, password),
		from:    from,
		to:      to,
		service: service,
	}
}

func (n *MailNotifier) Name() string { return "mail" }

func (n *MailNotifier) Notify(ctx context.Context, l LinkNotice) error {
	m := gomail.NewMessage()

	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to)
	m.SetHeader("Subject", fmt.Sprintf("New user verified: %s", l.SubjectName))
	m.SetBody("text/plain", fmt.Sprintf(
		"Discord user %s (%s) linked their %s account %s.\n\nVerification #%d, completed %s.",
		l.SubjectName, l.SubjectID, n.service, l.ExternalIdentity, l.TokenID, l.CompletedAt.Format("2006-01-02 15:04:05 MST"),
	))

	// gomail has no context support, so run it aside and honour the deadline
	done := make(chan error, 1)
	go func() { done <- n.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"bizops-backend/internal/config"
	"bizops-backend/internal/domain"
	"bizops-backend/internal/logger"
)

// MailSender is the subset of *sendgrid.Client the notifier needs.
type MailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type sendGridNotifier struct {
	sender    MailSender
	fromEmail string
	fromName  string
}

// NewMemberNotifier emails joiners through SendGrid when an API key is
// configured and only logs otherwise.
func NewMemberNotifier(cfg config.SendGridConfig) MemberNotifier {
	if cfg.APIKey == "" {
		return logNotifier{}
	}
	return NewSendGridNotifier(sendgrid.NewSendClient(cfg.APIKey), cfg.FromEmail, cfg.FromName)
}

func NewSendGridNotifier(sender MailSender, fromEmail, fromName string) MemberNotifier {
	return &sendGridNotifier{sender: sender, fromEmail: fromEmail, fromName: fromName}
}

func (n *sendGridNotifier) NotifyApproved(ctx context.Context, b *domain.Business, m *domain.Member) error {
	subject := fmt.Sprintf("You're in: %s", b.Name)
	body := fmt.Sprintf("Hello %s,\n\nYour request to join %s has been approved. You now have the %s role.\n",
		m.FirstName, b.Name, m.Role)
	return n.send(ctx, m.Email, m.FullName(), subject, body)
}

func (n *sendGridNotifier) NotifyRejected(ctx context.Context, b *domain.Business, p *domain.PendingMember) error {
	subject := fmt.Sprintf("Your request to join %s", b.Name)
	body := fmt.Sprintf("Hello %s,\n\nYour request to join %s was not approved.\n", p.FirstName, b.Name)
	return n.send(ctx, p.Email, p.FirstName+" "+p.LastName, subject, body)
}

func (n *sendGridNotifier) send(ctx context.Context, to, toName, subject, body string) error {
	if to == "" {
		return nil
	}
	msg := mail.NewSingleEmail(mail.NewEmail(n.fromName, n.fromEmail), subject, mail.NewEmail(toName, to), body, "")

	logger.ExternalServiceCall("sendgrid", "Send", "to", to, "subject", subject)
	resp, err := n.sender.SendWithContext(ctx, msg)
	if err == nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", resp.StatusCode, resp.Body)
	}
	logger.ExternalServiceResult("sendgrid", "Send", err, "to", to)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

type logNotifier struct{}

func (logNotifier) NotifyApproved(ctx context.Context, b *domain.Business, m *domain.Member) error {
	logger.WithBusiness(ctx, b.ID).Info("Member approved notification", "userID", m.UserID, "email", m.Email)
	return nil
}

func (logNotifier) NotifyRejected(ctx context.Context, b *domain.Business, p *domain.PendingMember) error {
	logger.WithBusiness(ctx, b.ID).Info("Member rejected notification", "userID", p.UserID, "email", p.Email)
	return nil
}

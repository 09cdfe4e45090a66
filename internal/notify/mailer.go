package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"miniloan/internal/config"
	"miniloan/internal/domain/user"
	"miniloan/internal/event"

	"github.com/jordan-wright/email"
)

const signature = "\nBest regards,\nMiniLoan"

type SMTPMailer struct {
	cfg    config.SMTPConfig
	send   func(e *email.Email) error
	logger *slog.Logger
}

var _ user.Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(cfg config.SMTPConfig, logger *slog.Logger) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg, logger: logger.With("component", "SMTPMailer")}
	m.send = func(e *email.Email) error {
		var auth smtp.Auth
		if cfg.Username != "" {
			auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		}
		return e.Send(cfg.Addr(), auth)
	}
	return m
}

func (m *SMTPMailer) deliver(ctx context.Context, to, subject, body string) error {
	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body + signature)

	if err := m.send(e); err != nil {
		m.logger.ErrorContext(ctx, "Failed to send email", "to", to, "subject", subject, "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.logger.InfoContext(ctx, "Email sent", "to", to, "subject", subject)
	return nil
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, name, temporaryPassword string) error {
	body := fmt.Sprintf("Dear %s,\n\n"+
		"Your password has been reset. Your temporary password is:\n\n    %s\n\n"+
		"Sign in with it and change your password straight away.\n", name, temporaryPassword)
	return m.deliver(ctx, to, "Your MiniLoan password has been reset", body)
}

// SendLoanNotification mails the borrower about a loan lifecycle event.
// Events without a recipient address are skipped.
func (m *SMTPMailer) SendLoanNotification(ctx context.Context, topic event.Topic, ev event.LoanEvent) error {
	if ev.Email == "" {
		m.logger.WarnContext(ctx, "Loan event has no recipient, skipping email", "loanID", ev.LoanID, "topic", topic)
		return nil
	}
	subject, body, ok := loanMessage(topic, ev)
	if !ok {
		return fmt.Errorf("no template for topic %q", topic)
	}
	return m.deliver(ctx, ev.Email, subject, body)
}

func loanMessage(topic event.Topic, ev event.LoanEvent) (subject, body string, ok bool) {
	switch topic {
	case event.TopicLoanApplied:
		return fmt.Sprintf("Loan application #%d received", ev.LoanID),
			fmt.Sprintf("We received your application for %s. The monthly instalment will be %s and the total payable %s.\n"+
				"You will hear from us once it has been reviewed.\n",
				ev.Amount.StringFixed(2), ev.Emi.StringFixed(2), ev.TotalPayable.StringFixed(2)), true
	case event.TopicLoanApproved:
		return fmt.Sprintf("Loan #%d approved", ev.LoanID),
			fmt.Sprintf("Your loan of %s has been approved. Your monthly instalment is %s.\n",
				ev.Amount.StringFixed(2), ev.Emi.StringFixed(2)), true
	case event.TopicLoanRejected:
		return fmt.Sprintf("Loan #%d was not approved", ev.LoanID),
			fmt.Sprintf("Your application for %s was not approved. You are welcome to apply again.\n",
				ev.Amount.StringFixed(2)), true
	case event.TopicPaymentReceived:
		return fmt.Sprintf("Payment received for loan #%d", ev.LoanID),
			fmt.Sprintf("We received your payment of %s (reference %s).\nPaid so far: %s\nRemaining: %s\n",
				ev.PaymentAmount.StringFixed(2), ev.PaymentReference,
				ev.PaidAmount.StringFixed(2), ev.RemainingAmount.StringFixed(2)), true
	case event.TopicLoanCompleted:
		return fmt.Sprintf("Loan #%d fully repaid", ev.LoanID),
			fmt.Sprintf("Congratulations, your loan is fully repaid. Total paid: %s.\n",
				ev.PaidAmount.StringFixed(2)), true
	}
	return "", "", false
}

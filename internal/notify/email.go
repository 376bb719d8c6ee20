package notify

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/altbank/backoffice/internal/config"
	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/money"
)

// Sender delivers client notices over SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// ApplicationDecided informs a client that a banker decided their
// account or card application. kind is "account" or "card".
func (s *Sender) ApplicationDecided(user *models.User, kind string, approved bool, reason string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{user.Email}
	if approved {
		e.Subject = fmt.Sprintf("Your %s application has been approved", kind)
	} else {
		e.Subject = fmt.Sprintf("Your %s application has been rejected", kind)
	}

	body := fmt.Sprintf("Dear %s,\n\n", user.Name)
	if approved {
		body += fmt.Sprintf("Good news: your %s application has been approved.\n", kind)
	} else {
		body += fmt.Sprintf(
			"Unfortunately your %s application has been rejected.\n"+
				"Reason: %s\n",
			kind, reason,
		)
	}
	body += "\nBest regards,\nAltBank Back Office"
	e.Text = []byte(body)

	return s.send(e)
}

// DepositReceived informs a client that a banker credited their account
func (s *Sender) DepositReceived(user *models.User, account *models.Account, amount money.Amount) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{user.Email}
	e.Subject = "Deposit notification"

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your account %s has been credited with %s EUR.\n"+
			"Transaction time: %s\n",
		user.Name, account.IBAN, amount, time.Now().Format("2006-01-02 15:04:05"),
	)
	body += "\nBest regards,\nAltBank Back Office"
	e.Text = []byte(body)

	return s.send(e)
}

func (s *Sender) send(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %v: %v", e.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Infof("Email sent to %v: %s", e.To, e.Subject)
	return nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/username/sellersync/backend/src/config"
	"github.com/username/sellersync/backend/src/logger"
)

func NewEmailService() EmailService {
	if config.Cfg == nil {
		slog.Error("Configuration (config.Cfg) is nil. Email service will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.AlertEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key or AlertEmail missing). Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
			alertEmail:  config.Cfg.AlertEmail,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.AlertEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		return &SMTPEmailService{
			SMTPServer:   config.Cfg.SMTPServer,
			SMTPPort:     config.Cfg.SMTPPort,
			SMTPUser:     config.Cfg.SMTPUser,
			SMTPPassword: config.Cfg.SMTPPassword,
			SenderEmail:  config.Cfg.SenderEmail,
			AlertEmail:   config.Cfg.AlertEmail,
		}
	default:
		logger.L.Info("Defaulting to MockEmailService.")
		return &MockEmailService{}
	}
}

func failureAlertBody(companyID, kind string, runID int64, errMsg string) (subject, body string) {
	subject = fmt.Sprintf("Sync run #%d failed (%s)", runID, kind)
	body = fmt.Sprintf(`A marketplace sync run has failed.

Company:     %s
Sync kind:   %s
Run id:      %d
Error:       %s

Partial progress has been kept; re-invoking the sync will create a new run.`,
		companyID, kind, runID, errMsg)
	return subject, body
}

type MailgunEmailService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
	alertEmail  string
}

func (s *MailgunEmailService) SendSyncFailureAlert(companyID, kind string, runID int64, errMsg string) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	subject, body := failureAlertBody(companyID, kind, runID, errMsg)

	message := s.mg.NewMessage(from, subject, body, s.alertEmail)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send sync failure alert via Mailgun", "error", err, "to", s.alertEmail, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.L.Info("Sync failure alert sent via Mailgun", "to", s.alertEmail, "id", id)
	return nil
}

type SMTPEmailService struct {
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SenderEmail  string
	AlertEmail   string
}

func (s *SMTPEmailService) SendSyncFailureAlert(companyID, kind string, runID int64, errMsg string) error {
	subject, body := failureAlertBody(companyID, kind, runID, errMsg)

	header := make(map[string]string)
	header["From"] = s.SenderEmail
	header["To"] = s.AlertEmail
	header["Subject"] = subject
	header["MIME-version"] = "1.0"
	header["Content-Type"] = "text/plain; charset=\"UTF-8\""
	message := ""
	for k, v := range header {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n" + body

	auth := smtp.PlainAuth("", s.SMTPUser, s.SMTPPassword, s.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.SMTPServer, s.SMTPPort)
	if err := smtp.SendMail(addr, auth, s.SenderEmail, []string{s.AlertEmail}, []byte(message)); err != nil {
		logger.L.Error("Failed to send sync failure alert via SMTP", "error", err, "to", s.AlertEmail)
		return fmt.Errorf("failed to send sync failure alert via SMTP: %w", err)
	}
	logger.L.Info("Sync failure alert sent via SMTP", "to", s.AlertEmail)
	return nil
}

type MockEmailService struct{}

func (s *MockEmailService) SendSyncFailureAlert(companyID, kind string, runID int64, errMsg string) error {
	logger.L.Info("MOCK EMAIL: sync failure alert",
		"companyId", companyID, "kind", kind, "runId", runID, "error", errMsg)
	return nil
}

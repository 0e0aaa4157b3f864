package services

import (
	"bytes"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/Dosada05/hackathon-partner-finder/config"
	"github.com/Dosada05/hackathon-partner-finder/models"
)

//go:embed templates/emails/*.html
var emailTemplates embed.FS

// Mailer отправляет транзакционные письма.
type Mailer interface {
	SendPasswordResetEmail(user *models.User, resetToken string, expiresIn time.Duration) error
	SendApplicationReceivedEmail(ownerEmail string, listing *models.Listing, app *models.Application) error
}

type EmailService struct {
	cfg       *config.Config
	templates *template.Template
	logger    *slog.Logger
}

func NewEmailService(cfg *config.Config, logger *slog.Logger) (*EmailService, error) {
	t, err := template.ParseFS(emailTemplates, "templates/emails/*.html")
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга шаблонов писем: %w", err)
	}
	return &EmailService{cfg: cfg, templates: t, logger: logger}, nil
}

func (s *EmailService) SendEmail(to []string, subject string, body string) error {
	if !s.cfg.SMTPEnabled() {
		// Без SMTP письмо только логируется (локальная разработка).
		s.logger.Info("smtp is not configured, email not sent", slog.Any("to", to), slog.String("subject", subject))
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	tlsconfig := &tls.Config{ServerName: s.cfg.SMTPHost}

	var client *smtp.Client
	if s.cfg.SMTPPort == 465 {
		// Прямое TLS-соединение
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("ошибка TLS соединения: %w", err)
		}
		client, err = smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			conn.Close()
			return fmt.Errorf("ошибка создания SMTP клиента: %w", err)
		}
	} else {
		// STARTTLS
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("ошибка соединения SMTP: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("ошибка команды STARTTLS: %w", err)
		}
	}
	defer client.Quit()

	if s.cfg.SMTPUser != "" {
		auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("ошибка аутентификации SMTP: %w", err)
		}
	}

	if err := client.Mail(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("ошибка MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("ошибка RCPT TO: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("ошибка команды DATA: %w", err)
	}
	if _, err = w.Write(buildMessage(s.cfg.SMTPFrom, to[0], subject, body)); err != nil {
		return fmt.Errorf("ошибка записи сообщения: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия DATA: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte("To: " + to + "\r\n" +
		"From: " + from + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		body + "\r\n")
}

func (s *EmailService) GenerateEmailBody(name string, data interface{}) (string, error) {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("ошибка выполнения шаблона %s: %w", name, err)
	}
	return body.String(), nil
}

func (s *EmailService) SendPasswordResetEmail(user *models.User, resetToken string, expiresIn time.Duration) error {
	data := struct {
		Name      string
		Email     string
		ResetLink string
		ExpiresIn string
	}{
		Name:      user.DisplayName,
		Email:     user.Email,
		ResetLink: fmt.Sprintf("%s/reset-password?token=%s", s.cfg.PublicURL, resetToken),
		ExpiresIn: expiresIn.String(),
	}

	htmlBody, err := s.GenerateEmailBody("password_reset_email.html", data)
	if err != nil {
		return fmt.Errorf("ошибка генерации тела письма для сброса пароля: %w", err)
	}
	return s.SendEmail([]string{user.Email}, "Reset your Hackathon Partner Finder password", htmlBody)
}

func (s *EmailService) SendApplicationReceivedEmail(ownerEmail string, listing *models.Listing, app *models.Application) error {
	data := struct {
		HackathonName  string
		ApplicantName  string
		ApplicantEmail string
		Message        string
		Link           string
	}{
		HackathonName:  listing.HackathonName,
		ApplicantName:  app.ApplicantName,
		ApplicantEmail: app.ApplicantEmail,
		Message:        app.Message,
		Link:           s.cfg.PublicURL + "/my-teams",
	}

	htmlBody, err := s.GenerateEmailBody("application_received_email.html", data)
	if err != nil {
		return fmt.Errorf("ошибка генерации тела письма о новой заявке: %w", err)
	}
	return s.SendEmail([]string{ownerEmail}, fmt.Sprintf("New application for %s", listing.HackathonName), htmlBody)
}

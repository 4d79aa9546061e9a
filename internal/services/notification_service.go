// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/smtp"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/corretorpro/crm-backend/internal/config"
)

// WhatsAppClient talks to the WhatsApp Business API and is the default
// Messenger implementation. When no API URL is configured (local dev,
// tests) sends are logged instead of failing.
type WhatsAppClient struct {
	config     config.WhatsAppConfig
	httpClient *http.Client
}

func NewWhatsAppClient(cfg config.WhatsAppConfig) *WhatsAppClient {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WhatsAppClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type whatsAppSendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (c *WhatsAppClient) Send(ctx context.Context, to, text string) error {
	if c.config.APIBaseURL == "" {
		logrus.WithFields(logrus.Fields{
			"to":   to,
			"text": text,
		}).Info("WhatsApp not configured, message logged only")
		return nil
	}

	payload := whatsAppSendRequest{
		From: c.config.FromPhone,
		To:   to,
		Type: "text",
	}
	payload.Text.Body = text

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIBaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp API returned %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// NotificationService renders and sends transactional email. WhatsApp
// delivery goes through the Messenger interface; this service covers the
// email channel for policy documents and account mail.
type NotificationService struct {
	config *config.Config
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(cfg *config.Config) *NotificationService {
	return &NotificationService{config: cfg}
}

func (s *NotificationService) SendPolicyEmail(to, clientName, policyNumber, insurer, documentURL string) error {
	tmpl := s.getEmailTemplate("policy_issued")

	data := map[string]interface{}{
		"ClientName":   clientName,
		"PolicyNumber": policyNumber,
		"Insurer":      insurer,
		"DocumentURL":  documentURL,
	}

	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(to, tmpl.Subject+" "+policyNumber, body)
}

func (s *NotificationService) SendWelcomeKitEmail(to, clientName, policyNumber string) error {
	tmpl := s.getEmailTemplate("welcome_kit")

	data := map[string]interface{}{
		"ClientName":   clientName,
		"PolicyNumber": policyNumber,
		"FromName":     s.config.Email.FromName,
	}

	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(to, tmpl.Subject, body)
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		logrus.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("Email not configured, message logged only")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		"policy_issued": {
			Subject: "Sua apólice foi emitida -",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Olá {{.ClientName}}!</h2>
	<p>Sua apólice <strong>{{.PolicyNumber}}</strong> foi emitida pela {{.Insurer}}.</p>
	<p>O documento está disponível no link abaixo:</p>
	<a href="{{.DocumentURL}}">Baixar apólice</a>
	<p>Atenciosamente,<br>Equipe CorretorPro</p>
</body>
</html>`,
		},
		"welcome_kit": {
			Subject: "Bem-vindo(a) à CorretorPro",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Bem-vindo(a), {{.ClientName}}!</h2>
	<p>Sua apólice <strong>{{.PolicyNumber}}</strong> está ativa.</p>
	<p>Guarde este número e conte com a gente para qualquer sinistro ou dúvida.</p>
	<p>Atenciosamente,<br>{{.FromName}}</p>
</body>
</html>`,
		},
	}

	if tmpl, exists := templates[templateType]; exists {
		return tmpl
	}

	return EmailTemplate{
		Subject: "Notificação",
		Body:    "<p>{{.Message}}</p>",
	}
}

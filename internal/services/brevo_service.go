package services

import (
	"context"
	"fmt"
	"html"

	"content-market/internal/models"
	"content-market/pkg/logging"

	brevo "github.com/getbrevo/brevo-go/lib"
)

// BrevoService emails operator alerts through Brevo
type BrevoService struct {
	client    *brevo.APIClient
	FromEmail string
	FromName  string
	AdminTo   string
}

// NewBrevoService creates a new Brevo service instance
func NewBrevoService(apiKey, fromEmail, fromName, adminTo string) *BrevoService {
	cfg := brevo.NewConfiguration()
	cfg.AddDefaultHeader("api-key", apiKey)
	return newBrevoService(cfg, fromEmail, fromName, adminTo)
}

func newBrevoService(cfg *brevo.Configuration, fromEmail, fromName, adminTo string) *BrevoService {
	return &BrevoService{
		client:    brevo.NewAPIClient(cfg),
		FromEmail: fromEmail,
		FromName:  fromName,
		AdminTo:   adminTo,
	}
}

// AlertContactMissing tells the operator that user cannot receive media
// until recipient adds the sender identity as a contact.
func (s *BrevoService) AlertContactMissing(ctx context.Context, user *models.User, recipient string) error {
	subject := fmt.Sprintf("Contact missing for user %d", user.ExternalID)
	textContent := fmt.Sprintf(
		"User %d (@%s) tried to receive media as %s but has not added the delivery account to their contacts.\n"+
			"Add them manually or ask them to add the contact.",
		user.ExternalID, user.Username, recipient)
	htmlContent := fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<h2 style="color: #333;">Contact missing</h2>
			<p>User <b>%d</b> (@%s) tried to receive media as <b>%s</b> but has not added the delivery account to their contacts.</p>
			<p style="color: #666;">Add them manually or ask them to add the contact.</p>
		</body>
		</html>
	`, user.ExternalID, html.EscapeString(user.Username), html.EscapeString(recipient))

	email := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  s.FromName,
			Email: s.FromEmail,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: s.AdminTo},
		},
		Subject:     subject,
		HtmlContent: htmlContent,
		TextContent: textContent,
	}

	_, resp, err := s.client.TransactionalEmailsApi.SendTransacEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	if resp != nil && resp.StatusCode >= 300 {
		return fmt.Errorf("brevo API error: status %d", resp.StatusCode)
	}

	logging.Infof("Admin alerted about missing contact for user %d", user.ExternalID)
	return nil
}

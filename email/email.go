package email

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender handles sending emails via SendGrid. A Sender with no API key is
// a no-op so the lead flow never depends on mail delivery.
type Sender struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

// NewSender creates a new email sender.
func NewSender(apiKey, fromName, fromEmail string) *Sender {
	if apiKey == "" {
		return &Sender{fromName: fromName, fromEmail: fromEmail}
	}
	return &Sender{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

// SendWelcomeEmail sends the guide-access welcome email to a new lead.
func (s *Sender) SendWelcomeEmail(recipientEmail, recipientName string) error {
	if s.client == nil {
		return nil
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	subject := "Your Global Talent Visa Guides"
	to := mail.NewEmail(recipientName, recipientEmail)

	greeting := "Hello"
	if recipientName != "" {
		greeting = fmt.Sprintf("Hello %s", recipientName)
	}

	plainText := fmt.Sprintf(`%s,

Thanks for your interest in the Global Talent visa.

Your application guides are now unlocked. Head back to the assessor to
browse route-specific guidance for Digital Technology, Arts & Culture
and Academia & Research.

When you're ready, run the eligibility assessment to see how your
profile scores against the endorsement criteria.

Best regards,
The Assessor Team`, greeting)

	htmlContent := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Your Guides Are Unlocked</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #1d4ed8; color: white; padding: 20px; border-radius: 5px 5px 0 0; text-align: center; }
        .content { background-color: #f9f9f9; padding: 30px; border: 1px solid #ddd; }
        .footer { padding: 20px; text-align: center; font-size: 0.9em; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Guides Unlocked</h1>
    </div>
    <div class="content">
        <p>%s,</p>
        <p>Thanks for your interest in the Global Talent visa.</p>
        <p>Your application guides are now unlocked. Head back to the assessor to browse route-specific guidance for Digital Technology, Arts &amp; Culture and Academia &amp; Research.</p>
        <p>When you're ready, run the eligibility assessment to see how your profile scores against the endorsement criteria.</p>
    </div>
    <div class="footer">
        <p>Best regards,<br>The Assessor Team</p>
    </div>
</body>
</html>`, greeting)

	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)

	response, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}

	return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
}

// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	From      string
	FromName  string
	EnableTLS bool
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	// Simple multipart message
	boundary := "boundary-justicebid"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	// HTML part
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// NegotiationData holds data for the negotiation notification template
type NegotiationData struct {
	AppName          string
	OrganizationName string
	OCGID            string
	Status           string
	Headline         string
	Detail           string
}

var negotiationSubjects = map[string]string{
	"PUBLISHED":   "Outside Counsel Guidelines published",
	"NEGOTIATING": "Outside Counsel Guidelines negotiation started",
	"SIGNED":      "Outside Counsel Guidelines signed",
}

var negotiationDetails = map[string]string{
	"PUBLISHED":   "The guidelines are published and available for review.",
	"NEGOTIATING": "A negotiation has been opened. Review the negotiable sections and make your selections within the point budget.",
	"SIGNED":      "The negotiation is complete and the agreement has been signed. A copy of the final document is available.",
}

// SendOCGNegotiationNotification notifies an organization about an OCG
// lifecycle event. Delivery is fire-and-forget at the caller's boundary:
// a failure here must never roll back the state transition it announces.
func (s *Service) SendOCGNegotiationNotification(recipientEmail, organizationName, ocgID, status string) error {
	subject, ok := negotiationSubjects[status]
	if !ok {
		subject = "Outside Counsel Guidelines update"
	}
	detail, ok := negotiationDetails[status]
	if !ok {
		detail = "The guidelines have been updated."
	}

	data := NegotiationData{
		AppName:          "Justice Bid",
		OrganizationName: organizationName,
		OCGID:            ocgID,
		Status:           status,
		Headline:         subject,
		Detail:           detail,
	}

	html, err := renderTemplate(negotiationEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render negotiation template: %w", err)
	}

	return s.SendHTMLEmail([]string{recipientEmail}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const negotiationEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Headline}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .status { display: inline-block; padding: 4px 10px; background: #eef4fb; color: #0066cc; border-radius: 4px; font-size: 13px; letter-spacing: 0.05em; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>{{.Headline}}</h2>
    <p><span class="status">{{.Status}}</span></p>

    <p>Hello {{.OrganizationName}},</p>

    <p>{{.Detail}}</p>

    <p>Reference: {{.OCGID}}</p>

    <div class="footer">
        <p>You are receiving this because your organization participates in a guideline negotiation on {{.AppName}}.</p>
    </div>
</body>
</html>`

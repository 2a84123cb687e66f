package notifier

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"path"
	"strings"

	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

// templates holds the parsed email bodies keyed by name without extension
var templates = mustParseTemplates()

func mustParseTemplates() map[string]*template.Template {
	parsed := template.Must(template.ParseFS(templateFS, "templates/*.html"))
	byName := make(map[string]*template.Template)
	for _, t := range parsed.Templates() {
		name := strings.TrimSuffix(path.Base(t.Name()), ".html")
		byName[name] = t
	}
	return byName
}

// Render executes the named template with vars
func Render(name string, vars map[string]any) (string, error) {
	t, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// SMTPConfig holds the outbound mail server settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPMailer sends notifications as HTML email
type SMTPMailer struct {
	client *mail.Client
}

// NewSMTPMailer creates a mailer. The connection is opened per send, so a
// temporarily unavailable server does not prevent startup.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port), mail.WithTLSPortPolicy(mail.TLSOpportunistic)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client for %s: %w", cfg.Host, err)
	}
	return &SMTPMailer{client: client}, nil
}

func buildMessage(n Notification) (*mail.Msg, error) {
	t, ok := templates[n.Template]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", n.Template)
	}

	msg := mail.NewMsg()
	if err := msg.From(n.Sender); err != nil {
		return nil, fmt.Errorf("failed to set From address: %w", err)
	}
	if err := msg.To(n.Recipient); err != nil {
		return nil, fmt.Errorf("failed to set To address: %w", err)
	}
	if n.ReplyTo != "" {
		if err := msg.ReplyTo(n.ReplyTo); err != nil {
			return nil, fmt.Errorf("failed to set Reply-To address: %w", err)
		}
	}
	msg.Subject(n.Subject)
	if err := msg.SetBodyHTMLTemplate(t, n.Variables); err != nil {
		return nil, fmt.Errorf("failed to render body: %w", err)
	}
	return msg, nil
}

// Notify renders and sends n
func (m *SMTPMailer) Notify(ctx context.Context, n Notification) error {
	msg, err := buildMessage(n)
	if err != nil {
		return fmt.Errorf("notify %s: %w", n.Recipient, err)
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify %s: failed to send email: %w", n.Recipient, err)
	}
	return nil
}

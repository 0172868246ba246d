package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"adgate/internal/config"
	"adgate/internal/retry"
	"adgate/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SMTPProvider sends email directly over SMTP
type SMTPProvider struct {
	config *config.EmailConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewSMTPProvider creates new SMTP provider
func NewSMTPProvider(cfg *config.EmailConfig, logger *zap.Logger) *SMTPProvider {
	return &SMTPProvider{
		config: cfg,
		logger: logger.Named("email.smtp"),
		now:    time.Now,
	}
}

// Name returns the provider name
func (p *SMTPProvider) Name() string { return config.EmailProviderSMTP }

// Send delivers msg and returns the generated message id
func (p *SMTPProvider) Send(ctx context.Context, msg *types.EmailMessage) (string, error) {
	from := cleanEmailAddress(sender(msg, p.config.From))
	to := cleanEmailAddress(msg.To)
	id := uuid.NewString()
	body := buildEmailMessage(id, sender(msg, p.config.From), msg, p.now())

	err := retry.Execute(ctx, &p.config.Retry, func(ctx context.Context) error {
		return p.deliver(ctx, from, to, body)
	})
	if err != nil {
		return "", providerError(p.Name(), err)
	}

	p.logger.Debug("Email sent", zap.String("id", id), zap.String("to", to))
	return id, nil
}

func (p *SMTPProvider) addr() string {
	return net.JoinHostPort(p.config.SMTP.Host, strconv.Itoa(p.config.SMTP.Port))
}

func (p *SMTPProvider) auth() smtp.Auth {
	if p.config.SMTP.Username == "" {
		return nil
	}
	return smtp.PlainAuth("", p.config.SMTP.Username, p.config.SMTP.Password, p.config.SMTP.Host)
}

// deliver runs one SMTP transaction
func (p *SMTPProvider) deliver(ctx context.Context, from, to string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.addr())
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if p.config.SMTP.UseTLS && p.config.SMTP.Port == 465 {
		conn = tls.Client(conn, p.tlsConfig())
	}

	client, err := smtp.NewClient(conn, p.config.SMTP.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if p.config.SMTP.UseTLS && p.config.SMTP.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err = client.StartTLS(p.tlsConfig()); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if auth := p.auth(); auth != nil {
		if err = client.Auth(auth); err != nil {
			return retry.Permanent(fmt.Errorf("authentication failed: %w", err))
		}
	}

	if err = client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM failed for %s: %w", from, err)
	}
	if err = client.Rcpt(to); err != nil {
		return retry.Permanent(fmt.Errorf("RCPT TO failed for %s: %w", to, err))
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close message writer: %w", err)
	}
	return client.Quit()
}

func (p *SMTPProvider) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName: p.config.SMTP.Host,
		MinVersion: tls.VersionTLS12,
	}
}

var headerValue = strings.NewReplacer("\r", "", "\n", "")

// buildEmailMessage renders an RFC 5322 message with an HTML body
func buildEmailMessage(id, from string, msg *types.EmailMessage, now time.Time) []byte {
	var buf bytes.Buffer

	headers := [][2]string{
		{"Message-ID", "<" + id + "@adgate>"},
		{"Date", now.Format(time.RFC1123Z)},
		{"From", from},
		{"To", msg.To},
		{"Subject", msg.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}
	if msg.ReplyTo != "" {
		headers = append(headers, [2]string{"Reply-To", msg.ReplyTo})
	}

	for _, h := range headers {
		buf.WriteString(h[0] + ": " + headerValue.Replace(h[1]) + "\r\n")
	}
	buf.WriteString("\r\n")
	buf.WriteString(msg.HTML)
	buf.WriteString("\r\n")

	return buf.Bytes()
}

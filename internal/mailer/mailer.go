// Package mailer renders simulation emails and submits them to the
// configured SMTP relay.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/secsim/phishportal/internal/config"
	"github.com/secsim/phishportal/internal/dkim"
)

// Mailer submits rendered messages to an SMTP relay, optionally DKIM
// signing them first.
type Mailer struct {
	cfg    config.MailerConfig
	signer *dkim.Signer
	logger *slog.Logger
}

func New(cfg config.MailerConfig, logger *slog.Logger) (*Mailer, error) {
	m := &Mailer{
		cfg:    cfg,
		logger: logger.With("component", "mailer"),
	}

	if cfg.DKIM.Enabled {
		signer, err := dkim.NewSignerFromFile(cfg.DKIM.KeyFile, cfg.DKIM.Domain, cfg.DKIM.Selector)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize DKIM signer: %w", err)
		}
		m.signer = signer
		logger.Info("DKIM signing enabled", "domain", cfg.DKIM.Domain, "selector", cfg.DKIM.Selector)
	}

	return m, nil
}

// Envelope describes one outgoing message
type Envelope struct {
	FromEmail string
	FromName  string
	To        string
	Subject   string
	BodyText  string
	BodyHTML  string
}

// Send builds the MIME message and submits it to the relay. The context
// bounds the whole submission.
func (m *Mailer) Send(ctx context.Context, env *Envelope) error {
	from := env.FromEmail
	if from == "" {
		from = m.cfg.FromEmail
	}
	fromName := env.FromName
	if fromName == "" {
		fromName = m.cfg.FromName
	}

	msg := BuildMessage(from, fromName, env.To, env.Subject, env.BodyText, env.BodyHTML)

	if m.signer != nil {
		signed, err := m.signer.Sign(msg)
		if err != nil {
			return fmt.Errorf("dkim signing failed: %w", err)
		}
		msg = signed
	}

	done := make(chan error, 1)
	go func() {
		done <- m.submit(from, env.To, msg)
	}()

	timeout := m.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("relay submission failed: %w", err)
		}
		m.logger.Debug("message submitted", "to", env.To, "subject", env.Subject)
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("relay submission timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit dials the relay, upgrades to TLS when the relay offers
// STARTTLS, authenticates, and transmits one message.
func (m *Mailer) submit(from, to string, msg []byte) error {
	host, _, err := net.SplitHostPort(m.cfg.RelayAddr)
	if err != nil {
		host = m.cfg.RelayAddr
	}
	tlsConfig := &tls.Config{
		ServerName:         host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: m.cfg.InsecureTLS,
	}
	client, err := smtp.DialStartTLS(m.cfg.RelayAddr, tlsConfig)
	if err != nil {
		m.logger.Warn("STARTTLS failed, continuing without encryption", "error", err)
		client, err = smtp.Dial(m.cfg.RelayAddr)
		if err != nil {
			return err
		}
	}
	defer client.Close()

	if m.cfg.Username != "" {
		if err := client.Auth(sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)); err != nil {
			return fmt.Errorf("relay auth failed: %w", err)
		}
	}

	return client.SendMail(from, []string{to}, bytes.NewReader(msg))
}

// BuildMessage assembles a multipart/alternative MIME message
func BuildMessage(fromEmail, fromName, to, subject, bodyText, bodyHTML string) []byte {
	var buf bytes.Buffer
	boundary := "phishportal-" + fmt.Sprintf("%d", time.Now().UnixNano())

	fromHeader := fromEmail
	if fromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", fromName), fromEmail)
	}

	fmt.Fprintf(&buf, "From: %s\r\n", fromHeader)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	fmt.Fprintf(&buf, "\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(normalizeCRLF(bodyText))
	fmt.Fprintf(&buf, "\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
	buf.WriteString(normalizeCRLF(bodyHTML))
	fmt.Fprintf(&buf, "\r\n")

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

func normalizeCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

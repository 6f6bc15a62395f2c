package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/wandernook/wandernook/internal/pkg/metrics"
)

// SMTPProvider sends mail over SMTP. Secure selects implicit TLS; otherwise
// STARTTLS is used when the server offers it.
type SMTPProvider struct {
	Host   string
	Port   string
	User   string
	Pass   string
	Secure bool
}

func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) send(ctx context.Context, from string, m Message) (Result, error) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), senderDomain(from))
	raw, err := buildMIMEMessage(from, m, messageID, time.Now())
	if err != nil {
		return Result{}, err
	}

	// The From header keeps the display name, MAIL FROM takes the bare address.
	envelope := envelopeSender(from)

	defer metrics.ObserveUpstream("smtp", time.Now())
	addr := net.JoinHostPort(p.Host, p.Port)
	auth := smtp.PlainAuth("", p.User, p.Pass, p.Host)
	if p.Secure {
		err = p.sendImplicitTLS(ctx, addr, auth, envelope, m.To, raw)
	} else {
		err = smtp.SendMail(addr, auth, envelope, []string{m.To}, raw)
	}
	if err != nil {
		log.Errorf("[Mailer] SMTP send to %s via %s failed: %v", m.To, addr, err)
		return Result{}, err
	}
	log.Infof("[Mailer] Email sent to %s via %s", m.To, addr)
	return Result{Sent: true, ProviderID: messageID}, nil
}

func (p *SMTPProvider) sendImplicitTLS(ctx context.Context, addr string, auth smtp.Auth, from, to string, raw []byte) error {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 15 * time.Second},
		Config:    &tls.Config{ServerName: p.Host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, p.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if err := c.Auth(auth); err != nil {
		return err
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// buildMIMEMessage renders a multipart/mixed message with a
// multipart/alternative text+html body and base64 attachments.
func buildMIMEMessage(from string, m Message, messageID string, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", from)
	header("To", m.To)
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", messageID)
	header("MIME-Version", "1.0")
	header("Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", mixed.Boundary()))
	buf.WriteString("\r\n")

	var alt bytes.Buffer
	altWriter := multipart.NewWriter(&alt)
	if m.Text != "" {
		if err := writeQuotedPart(altWriter, "text/plain; charset=UTF-8", m.Text); err != nil {
			return nil, err
		}
	}
	if err := writeQuotedPart(altWriter, "text/html; charset=UTF-8", m.HTML); err != nil {
		return nil, err
	}
	if err := altWriter.Close(); err != nil {
		return nil, err
	}

	altPart, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%q", altWriter.Boundary())},
	})
	if err != nil {
		return nil, err
	}
	if _, err := altPart.Write(alt.Bytes()); err != nil {
		return nil, err
	}

	for _, a := range m.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {fmt.Sprintf("%s; name=%q", contentType, a.Filename)},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.Filename)},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(part, a.Content); err != nil {
			return nil, err
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeQuotedPart(w *multipart.Writer, contentType, body string) error {
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}

func writeBase64Lines(w interface{ Write([]byte) (int, error) }, content []byte) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 76 {
		if _, err := w.Write([]byte(encoded[:76] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := w.Write([]byte(encoded + "\r\n"))
	return err
}

func envelopeSender(from string) string {
	if parsed, err := parseAddress(from); err == nil {
		return parsed
	}
	return strings.TrimSpace(from)
}

func senderDomain(from string) string {
	addr := envelopeSender(from)
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}

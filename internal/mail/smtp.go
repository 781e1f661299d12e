package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	netmail "net/mail"
	"net/smtp"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/senseirm/internal/config"
)

// SMTPTransport sends mail through an authenticated SMTP relay.
type SMTPTransport struct {
	host     string
	addr     string
	secure   bool
	username string
	password string
	from     string
	envelope string
	now      func() time.Time
}

// New builds an SMTP transport from configuration. It returns
// ErrTransportUnavailable when host, user or password is missing.
func New(cfg config.SMTPConfig) (*SMTPTransport, error) {
	if !cfg.Configured() {
		return nil, ErrTransportUnavailable
	}

	from := cfg.From
	if from == "" {
		from = fmt.Sprintf("%q <%s>", "SenseiRM", cfg.User)
	}
	parsed, err := netmail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_FROM %q: %w", from, err)
	}

	port := cfg.Port
	if port == "" {
		port = "587"
	}

	return &SMTPTransport{
		host:     cfg.Host,
		addr:     net.JoinHostPort(cfg.Host, port),
		secure:   cfg.Secure,
		username: cfg.User,
		password: cfg.Pass,
		from:     parsed.String(),
		envelope: parsed.Address,
		now:      time.Now,
	}, nil
}

// Send delivers one message. The returned id is the generated Message-ID.
func (t *SMTPTransport) Send(ctx context.Context, to, subject, html string) (string, error) {
	to = sanitizeHeader(to)
	if _, err := netmail.ParseAddress(to); err != nil {
		return "", &DeliveryError{To: to, Err: fmt.Errorf("invalid recipient: %w", err)}
	}

	id := uuid.NewString()
	msg, err := buildMessage(message{
		From:      t.from,
		To:        to,
		Subject:   subject,
		HTML:      html,
		MessageID: messageID(id, t.envelope),
		Date:      t.now(),
		Boundary:  id,
	})
	if err != nil {
		return "", &DeliveryError{To: to, Err: err}
	}

	if err := t.deliver(ctx, to, msg); err != nil {
		return "", &DeliveryError{To: to, Err: err}
	}
	return id, nil
}

func (t *SMTPTransport) deliver(ctx context.Context, to string, msg []byte) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if !t.secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: t.host}); err != nil {
				return err
			}
		}
	}

	if ok, _ := client.Extension("AUTH"); ok {
		if err := client.Auth(smtp.PlainAuth("", t.username, t.password, t.host)); err != nil {
			return err
		}
	}

	if err := client.Mail(t.envelope); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (t *SMTPTransport) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	if t.secure {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: t.host}}
		return tlsDialer.DialContext(ctx, "tcp", t.addr)
	}
	return dialer.DialContext(ctx, "tcp", t.addr)
}

type message struct {
	From      string
	To        string
	Subject   string
	HTML      string
	MessageID string
	Date      time.Time
	Boundary  string
}

func buildMessage(m message) ([]byte, error) {
	var buf bytes.Buffer
	body := multipart.NewWriter(&buf)
	if err := body.SetBoundary(m.Boundary); err != nil {
		return nil, err
	}

	header := func(k, v string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}
	header("From", m.From)
	header("To", m.To)
	header("Subject", mime.QEncoding.Encode("utf-8", sanitizeHeader(m.Subject)))
	header("Message-ID", m.MessageID)
	header("Date", m.Date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", body.Boundary()))
	buf.WriteString("\r\n")

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain", HTMLToText(m.HTML)},
		{"text/html", m.HTML},
	}
	for _, p := range parts {
		w, err := body.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType + `; charset="utf-8"`},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(p.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := body.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText strips tags for the plain-text alternative.
func HTMLToText(html string) string {
	text := tagPattern.ReplaceAllString(html, "")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func messageID(id, sender string) string {
	domain := "senseirm.local"
	if at := strings.LastIndex(sender, "@"); at >= 0 && at < len(sender)-1 {
		domain = sender[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", id, domain)
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(strings.TrimSpace(v))
}

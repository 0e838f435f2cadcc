// Package mailer delivers magic links, QR keys and renewal reminders.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"linkauth/internal/domain"
	"linkauth/internal/service"
)

type SMTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
	LoginURL string // where a lapsed QR holder requests a new key
	Timeout  time.Duration
}

// DefaultSendTimeout bounds one SMTP exchange when the caller's context has
// no earlier deadline.
const DefaultSendTimeout = 30 * time.Second

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

var _ service.Notifier = (*SMTPNotifier)(nil)

type SMTPNotifier struct {
	cfg  SMTPConfig
	send sendFunc
	now  func() time.Time
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSendTimeout
	}
	return &SMTPNotifier{cfg: cfg, send: sendMail, now: time.Now}
}

func (n *SMTPNotifier) SendMagicLink(ctx context.Context, to, link string) error {
	body := "Use this link to sign in. It works once and expires in 15 minutes.\r\n\r\n" + link + "\r\n"
	return n.deliver(ctx, to, "Your sign-in link", n.plain(to, "Your sign-in link", body))
}

func (n *SMTPNotifier) SendQRKey(ctx context.Context, to string, key *domain.QRKey) error {
	msg, err := n.withAttachment(to, "Your QR sign-in key",
		"Scan the attached code to sign in. If you cannot scan it, open this link instead:\r\n\r\n"+key.URL+"\r\n\r\n"+
			"The key is valid until "+key.Token.ExpiresAt.UTC().Format("2 January 2006")+".\r\n",
		"qr-key.png", key.PNG)
	if err != nil {
		return err
	}
	return n.deliver(ctx, to, "Your QR sign-in key", msg)
}

func (n *SMTPNotifier) SendQRRenewal(ctx context.Context, to string, expiredAt time.Time) error {
	body := "Your QR sign-in key expired on " + expiredAt.UTC().Format("2 January 2006") + ".\r\n"
	if n.cfg.LoginURL != "" {
		body += "Request a new one at " + n.cfg.LoginURL + "\r\n"
	}
	return n.deliver(ctx, to, "Your QR sign-in key has expired", n.plain(to, "Your QR sign-in key has expired", body))
}

func (n *SMTPNotifier) deliver(ctx context.Context, to, subject string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	var auth smtp.Auth
	if n.cfg.Username != "" {
		host, _, _ := strings.Cut(n.cfg.Addr, ":")
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, host)
	}
	if err := n.send(ctx, n.cfg.Addr, auth, n.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send %q: %w", subject, err)
	}
	return nil
}

// sendMail is smtp.SendMail bound to ctx: the dial honours cancellation, the
// connection carries ctx's deadline, and cancelling ctx closes it mid-exchange.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return ctxErr(ctx, err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return ctxErr(ctx, err)
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server does not support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return ctxErr(ctx, err)
		}
	}
	if err := c.Mail(from); err != nil {
		return ctxErr(ctx, err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return ctxErr(ctx, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return ctxErr(ctx, err)
	}
	if _, err := w.Write(msg); err != nil {
		return ctxErr(ctx, err)
	}
	if err := w.Close(); err != nil {
		return ctxErr(ctx, err)
	}
	return ctxErr(ctx, c.Quit())
}

// ctxErr prefers the context's error once it is done, since the network error
// is then only a symptom.
func ctxErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %v", cerr, err)
	}
	return err
}

func (n *SMTPNotifier) headers(buf *bytes.Buffer, to, subject string) {
	fmt.Fprintf(buf, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(buf, "To: %s\r\n", to)
	fmt.Fprintf(buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(buf, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
}

func (n *SMTPNotifier) plain(to, subject, body string) []byte {
	var buf bytes.Buffer
	n.headers(&buf, to, subject)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}

func (n *SMTPNotifier) withAttachment(to, subject, body, filename string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	n.headers(&buf, to, subject)

	var parts bytes.Buffer
	mw := multipart.NewWriter(&parts)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	if _, err := text.Write([]byte(body)); err != nil {
		return nil, err
	}

	img, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"image/png"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", filename)},
	})
	if err != nil {
		return nil, err
	}
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := img.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return nil, err
		}
		enc = enc[76:]
	}
	if _, err := img.Write([]byte(enc + "\r\n")); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	buf.Write(parts.Bytes())
	return buf.Bytes(), nil
}

var _ service.Notifier = (*LogNotifier)(nil)

// LogNotifier writes deliveries to the log instead of sending mail. Meant for
// local development where no SMTP relay is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l LogNotifier) SendMagicLink(ctx context.Context, to, link string) error {
	l.logger().InfoContext(ctx, "magic link", "to", to, "link", link)
	return nil
}

func (l LogNotifier) SendQRKey(ctx context.Context, to string, key *domain.QRKey) error {
	l.logger().InfoContext(ctx, "qr key", "to", to, "url", key.URL, "png_bytes", len(key.PNG))
	return nil
}

func (l LogNotifier) SendQRRenewal(ctx context.Context, to string, expiredAt time.Time) error {
	l.logger().InfoContext(ctx, "qr renewal reminder", "to", to, "expired_at", expiredAt)
	return nil
}

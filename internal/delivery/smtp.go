package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/logging"
)

const (
	mailSubject = "Your Categorized Transactions Report"
	mailBody    = "Please find your categorized transactions report attached."
)

// SMTPConfig holds the mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSink emails the categorized file as an attachment.
type SMTPSink struct {
	cfg    SMTPConfig
	retry  RetryPolicy
	send   SendFunc
	logger logging.Logger
}

// NewSMTPSink creates an SMTPSink. smtp.SendMail upgrades the connection
// with STARTTLS when the server offers it.
func NewSMTPSink(cfg SMTPConfig, policy RetryPolicy, logger logging.Logger) *SMTPSink {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPSink{cfg: cfg, retry: policy, send: smtp.SendMail, logger: logger}
}

// WithSendFunc replaces the transport, for tests.
func (s *SMTPSink) WithSendFunc(send SendFunc) *SMTPSink {
	s.send = send
	return s
}

func (s *SMTPSink) Name() string { return "smtp" }

// Deliver sends d to d.Recipient.
func (s *SMTPSink) Deliver(ctx context.Context, d Delivery) error {
	to, err := mail.ParseAddress(d.Recipient)
	if err != nil {
		return &apperrors.ValidationError{Field: "recipient", Reason: err.Error()}
	}

	msg, err := BuildMessage(s.cfg.From, to.Address, d)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	err = s.retry.do(ctx, s.logger, s.Name(), func() error {
		return s.send(addr, auth, s.cfg.From, []string{to.Address}, msg)
	})
	if err != nil {
		return fmt.Errorf("error sending email to %s: %w", to.Address, err)
	}

	s.logger.WithFields(
		logging.Field{Key: logging.FieldProfile, Value: d.Profile},
		logging.Field{Key: logging.FieldFilename, Value: d.Filename},
		logging.Field{Key: "recipient", Value: to.Address},
	).Info("Categorized file emailed")
	return nil
}

// BuildMessage renders a multipart/mixed email carrying d.CSV as an
// attachment named d.Filename.
func BuildMessage(from, to string, d Delivery) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := []struct{ key, value string }{
		{"From", from},
		{"To", to},
		{"Subject", mime.QEncoding.Encode("utf-8", mailSubject)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "multipart/mixed; boundary=" + mw.Boundary()},
	}
	for _, h := range header {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.key, h.value)
	}
	buf.WriteString("\r\n")

	body := mailBody
	if d.Summary != "" {
		body += "\n\n" + d.Summary
	}
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating message body: %w", err)
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("error writing message body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("error writing message body: %w", err)
	}

	part, err = mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType("text/csv", map[string]string{"charset": "utf-8"})},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename})},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating attachment: %w", err)
	}
	if err := writeBase64Lines(part, d.CSV); err != nil {
		return nil, fmt.Errorf("error writing attachment: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("error closing message: %w", err)
	}
	return buf.Bytes(), nil
}

// writeBase64Lines writes data base64 encoded in 76 character lines.
func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := min(76, len(encoded))
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:n]); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}

package email

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	htmltemplate "html/template"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

//go:embed templates
var templates embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templates, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templates, "templates/*.txt"))
)

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Message struct {
	To          mail.Address
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, from mail.Address, msg Message) error
}

type Email struct {
	from      mail.Address
	transport Transport
}

func New(from mail.Address, t Transport) *Email {
	return &Email{from: from, transport: t}
}

type resetData struct {
	Name string
	Link string
}

func (e *Email) SendPasswordReset(ctx context.Context, to string, name string, link string) error {
	msg, err := render("reset", resetData{Name: name, Link: link})
	if err != nil {
		return err
	}
	msg.To = mail.Address{Name: name, Address: to}
	msg.Subject = "Reset your RaiseUP password"

	if err := e.transport.Send(ctx, e.from, msg); err != nil {
		return fmt.Errorf("sending password reset to %s: %w", to, err)
	}
	return nil
}

type welcomeData struct {
	Name string
	Link string
}

func (e *Email) SendWelcome(ctx context.Context, to string, name string, link string) error {
	msg, err := render("welcome", welcomeData{Name: name, Link: link})
	if err != nil {
		return err
	}
	msg.To = mail.Address{Name: name, Address: to}
	msg.Subject = "Welcome to RaiseUP"

	if err := e.transport.Send(ctx, e.from, msg); err != nil {
		return fmt.Errorf("sending welcome to %s: %w", to, err)
	}
	return nil
}

// Certificate is the content of a course completion email.
type Certificate struct {
	Number string
	Name   string
	Course string
	Link   string
	PDF    []byte
}

func (e *Email) SendCertificate(ctx context.Context, to string, c Certificate) error {
	msg, err := render("certificate", c)
	if err != nil {
		return err
	}
	msg.To = mail.Address{Name: c.Name, Address: to}
	msg.Subject = "Your RaiseUP certificate for " + c.Course
	if len(c.PDF) > 0 {
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    "certificate-" + c.Number + ".pdf",
			ContentType: "application/pdf",
			Content:     c.PDF,
		})
	}

	if err := e.transport.Send(ctx, e.from, msg); err != nil {
		return fmt.Errorf("sending certificate %s to %s: %w", c.Number, to, err)
	}
	return nil
}

// Order is the content of an order confirmation.
type Order struct {
	Number  string
	Name    string
	Courses []string
	Total   string
	Invoice []byte
}

func (e *Email) SendOrderConfirmation(ctx context.Context, to string, o Order) error {
	msg, err := render("order", o)
	if err != nil {
		return err
	}
	msg.To = mail.Address{Name: o.Name, Address: to}
	msg.Subject = "Your RaiseUP order " + o.Number
	if len(o.Invoice) > 0 {
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    "invoice-" + o.Number + ".pdf",
			ContentType: "application/pdf",
			Content:     o.Invoice,
		})
	}

	if err := e.transport.Send(ctx, e.from, msg); err != nil {
		return fmt.Errorf("sending order %s confirmation to %s: %w", o.Number, to, err)
	}
	return nil
}

func render(name string, data any) (Message, error) {
	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return Message{}, fmt.Errorf("rendering %s text: %w", name, err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return Message{}, fmt.Errorf("rendering %s html: %w", name, err)
	}
	return Message{Text: text.String(), HTML: html.String()}, nil
}

// =============================================================================

// SMTP sends through a mail relay with PLAIN authentication.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (s SMTP) Send(ctx context.Context, from mail.Address, msg Message) error {
	body, err := compose(from, msg, time.Now())
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	addr := s.Host + ":" + strconv.Itoa(s.Port)
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, from.Address, []string{msg.To.Address}, body)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func compose(from mail.Address, msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprint(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mixed.Boundary())

	var alt bytes.Buffer
	altW := multipart.NewWriter(&alt)
	for _, part := range []struct{ typ, body string }{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	} {
		w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {part.typ}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := altW.Close(); err != nil {
		return nil, err
	}

	w, err := mixed.CreatePart(textproto.MIMEHeader{"Content-Type": {"multipart/alternative; boundary=" + altW.Boundary()}})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(alt.Bytes()); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		w, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {a.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.Filename)},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(wrap(base64.StdEncoding.EncodeToString(a.Content), 76))); err != nil {
			return nil, err
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func wrap(s string, n int) string {
	var b strings.Builder
	for len(s) > n {
		b.WriteString(s[:n])
		b.WriteString("\r\n")
		s = s[n:]
	}
	b.WriteString(s)
	return b.String()
}

// =============================================================================

// Sendgrid sends through the SendGrid v3 API.
type Sendgrid struct {
	Key  string
	Host string
}

func (s Sendgrid) Send(ctx context.Context, from mail.Address, msg Message) error {
	host := s.Host
	if host == "" {
		host = "https://api.sendgrid.com"
	}

	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(from.Name, from.Address))
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.Text),
		sgmail.NewContent("text/html", msg.HTML),
	)
	for _, a := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			Type:        a.ContentType,
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}

	req := sendgrid.GetRequest(s.Key, "/v3/mail/send", host)
	req.Method = "POST"
	req.Body = sgmail.GetRequestBody(m)

	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("calling sendgrid: %w", err)
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("sendgrid answered %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

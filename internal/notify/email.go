package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/CosmoTheDev/tasknotify/models"
)

// EmailProvider sends notifications via SMTP.
//
// Settings: smtp_host, from, to (comma separated) are required; smtp_port
// (default 587), username, password, use_tls (implicit TLS) and subject are
// optional. STARTTLS is used whenever the server offers it.
type EmailProvider struct {
	dialTimeout time.Duration
}

// NewEmail creates an EmailProvider.
func NewEmail() *EmailProvider { return &EmailProvider{dialTimeout: 10 * time.Second} }

func (e *EmailProvider) Type() string { return "email" }

func (e *EmailProvider) Validate(cfg models.ProviderConfig) models.ValidationResult {
	var errs []string
	if cfg.Setting("smtp_host") == "" {
		errs = append(errs, "smtp_host is required")
	}
	if p := cfg.Setting("smtp_port"); p != "" {
		if n, err := strconv.Atoi(p); err != nil || n <= 0 || n > 65535 {
			errs = append(errs, fmt.Sprintf("smtp_port must be a port number, got %q", p))
		}
	}
	if from := cfg.Setting("from"); from == "" {
		errs = append(errs, "from is required")
	} else if _, err := mail.ParseAddress(from); err != nil {
		errs = append(errs, fmt.Sprintf("from is not a valid address: %v", err))
	}
	if to := cfg.Setting("to"); to == "" {
		errs = append(errs, "to is required")
	} else if _, err := mail.ParseAddressList(to); err != nil {
		errs = append(errs, fmt.Sprintf("to is not a valid address list: %v", err))
	}
	if v := cfg.Setting("use_tls"); v != "" {
		if _, err := strconv.ParseBool(v); err != nil {
			errs = append(errs, fmt.Sprintf("use_tls must be true or false, got %q", v))
		}
	}
	if cfg.Setting("password") != "" && cfg.Setting("username") == "" {
		errs = append(errs, "password is set but username is empty")
	}
	if len(errs) > 0 {
		return models.Invalid(errs...)
	}
	return models.ValidationResult{Valid: true}
}

func (e *EmailProvider) Send(ctx context.Context, cfg models.ProviderConfig, msg models.NotificationMessage) models.NotificationResult {
	return finish(e.Type(), e.send(ctx, cfg, msg))
}

func (e *EmailProvider) send(ctx context.Context, cfg models.ProviderConfig, msg models.NotificationMessage) error {
	if v := e.Validate(cfg); !v.Valid {
		return invalidConfig(e.Type(), v)
	}
	host := cfg.Setting("smtp_host")
	port := 587
	if p := cfg.Setting("smtp_port"); p != "" {
		port, _ = strconv.Atoi(p)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	from, _ := mail.ParseAddress(cfg.Setting("from"))
	to, _ := mail.ParseAddressList(cfg.Setting("to"))
	useTLS, _ := strconv.ParseBool(cfg.Setting("use_tls"))

	subject := cfg.Setting("subject")
	if subject == "" {
		subject = "[tasknotify] " + msg.EventName
	}
	recipients := make([]string, len(to))
	for i, a := range to {
		recipients[i] = a.String()
	}
	body := fmt.Sprintf("Subject: %s\r\nFrom: %s\r\nTo: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		subject, from.String(), strings.Join(recipients, ", "), strings.ReplaceAll(msg.RenderedText, "\n", "\r\n"))

	dialer := &net.Dialer{Timeout: e.dialTimeout}
	var conn net.Conn
	var err error
	if useTLS {
		td := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: host}}
		conn, err = td.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return &SendError{Kind: FailureTransient, Err: fmt.Errorf("email: dial %s: %w", addr, err)}
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return classifySMTP("greeting", err)
	}
	defer client.Close()

	if !useTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
				return classifySMTP("starttls", err)
			}
		}
	}
	if user := cfg.Setting("username"); user != "" {
		if err := client.Auth(smtp.PlainAuth("", user, cfg.Setting("password"), host)); err != nil {
			return &SendError{Kind: FailureAuth, Err: fmt.Errorf("email: auth: %w", err)}
		}
	}
	if err := client.Mail(from.Address); err != nil {
		return classifySMTP("mail from", err)
	}
	for _, a := range to {
		if err := client.Rcpt(a.Address); err != nil {
			return classifySMTP("rcpt "+a.Address, err)
		}
	}
	wc, err := client.Data()
	if err != nil {
		return classifySMTP("data", err)
	}
	if _, err := fmt.Fprint(wc, body); err != nil {
		return classifySMTP("write body", err)
	}
	if err := wc.Close(); err != nil {
		return classifySMTP("end data", err)
	}
	// The message is accepted once DATA is closed.
	_ = client.Quit()
	return nil
}

// classifySMTP maps SMTP reply codes onto the failure taxonomy.
func classifySMTP(stage string, err error) error {
	wrapped := fmt.Errorf("email: %s: %w", stage, err)
	var tp *textproto.Error
	if errors.As(err, &tp) {
		switch {
		case tp.Code == 530 || tp.Code == 534 || tp.Code == 535:
			return &SendError{Kind: FailureAuth, Err: wrapped}
		case tp.Code >= 500:
			return &SendError{Kind: FailureTarget, Err: wrapped}
		}
	}
	return &SendError{Kind: FailureTransient, Err: wrapped}
}

package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"gopkg.in/gomail.v2"

	"obogportal/internal/config"
)

// smtpFallbackTimeout bounds a send whose context carries no deadline.
const smtpFallbackTimeout = 30 * time.Second

// newSMTPSender delivers gomail messages over one connection whose deadline follows ctx,
// so a stalled server cannot hold the send past the dispatch budget. Port 465 speaks
// implicit TLS; other ports upgrade with STARTTLS when offered.
func newSMTPSender(cfg config.EmailConfig) func(ctx context.Context, m *gomail.Message) error {
	return func(ctx context.Context, m *gomail.Message) error {
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(smtpFallbackTimeout)
		}

		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)))
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return fmt.Errorf("set deadline: %w", err)
		}

		tlsConfig := &tls.Config{ServerName: cfg.SMTPHost}
		implicitTLS := cfg.SMTPPort == 465
		if implicitTLS {
			conn = tls.Client(conn, tlsConfig)
		}

		c, err := smtp.NewClient(conn, cfg.SMTPHost)
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("greeting: %w", err)
		}
		defer c.Close()

		if !implicitTLS {
			if ok, _ := c.Extension("STARTTLS"); ok {
				if err := c.StartTLS(tlsConfig); err != nil {
					return fmt.Errorf("starttls: %w", err)
				}
			}
		}
		if cfg.SMTPUser != "" {
			if ok, _ := c.Extension("AUTH"); ok {
				if err := c.Auth(smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)); err != nil {
					return fmt.Errorf("auth: %w", err)
				}
			}
		}

		send := gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
			if err := c.Mail(from); err != nil {
				return err
			}
			for _, addr := range to {
				if err := c.Rcpt(addr); err != nil {
					return err
				}
			}
			w, err := c.Data()
			if err != nil {
				return err
			}
			if _, err := msg.WriteTo(w); err != nil {
				_ = w.Close()
				return err
			}
			return w.Close()
		})
		if err := gomail.Send(send, m); err != nil {
			return err
		}
		return c.Quit()
	}
}

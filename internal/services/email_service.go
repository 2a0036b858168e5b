package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"obogportal/internal/config"
	"obogportal/internal/logging"
	"obogportal/internal/models"
)

const errNotConfigured = "email service not configured"

type SendResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type EmailConfigStatus struct {
	IsConfigured bool   `json:"isConfigured"`
	Mode         string `json:"mode"`
}

type Recommendation struct {
	Type    string `json:"type"` // warning | info | success
	Message string `json:"message"`
}

// EmailService delivers OTP codes. SendOTPEmail never returns a Go error: delivery problems
// are reported in the result so issuance can log them and carry on.
type EmailService interface {
	SendOTPEmail(ctx context.Context, email, code, purpose string) SendResult
	CheckConfig() EmailConfigStatus
}

type emailService struct {
	mode       string
	production bool
	timeout    time.Duration
	logger     *zap.Logger

	// gas
	webAppURL string
	apiSecret string
	client    *http.Client

	// smtp
	from     string
	smtpSend func(ctx context.Context, m *gomail.Message) error
}

// NewEmailService builds the dispatcher for a mode resolved once from configuration.
func NewEmailService(cfg config.EmailConfig, mode string, production bool, logger *zap.Logger) EmailService {
	s := &emailService{
		mode:       mode,
		production: production,
		timeout:    cfg.Timeout,
		logger:     logger.Named("email"),
		webAppURL:  cfg.GASWebAppURL,
		apiSecret:  cfg.GASAPISecret,
		client:     &http.Client{Timeout: cfg.Timeout},
		from:       cfg.FromEmail,
	}
	if mode == config.EmailModeSMTP {
		s.smtpSend = newSMTPSender(cfg)
	}
	return s
}

func (s *emailService) CheckConfig() EmailConfigStatus {
	return EmailConfigStatus{
		IsConfigured: s.mode != config.EmailModeDevelopment,
		Mode:         s.mode,
	}
}

func (s *emailService) SendOTPEmail(ctx context.Context, email, code, purpose string) SendResult {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var err error
	switch s.mode {
	case config.EmailModeGAS:
		err = s.sendGAS(ctx, email, code, purpose)
	case config.EmailModeSMTP:
		err = s.sendSMTP(ctx, email, code, purpose)
	default:
		if s.production {
			s.logger.Warn("otp not delivered: no email transport configured",
				zap.String("email", logging.MaskEmail(email)), zap.String("purpose", purpose))
		} else {
			s.logger.Info("otp (development, not emailed)",
				zap.String("email", email), zap.String("purpose", purpose), zap.String("code", code))
		}
		return SendResult{Success: false, Error: errNotConfigured}
	}

	if err != nil {
		s.logger.Error("otp email failed", zap.String("mode", s.mode),
			zap.String("email", logging.MaskEmail(email)), zap.Error(err))
		return SendResult{Success: false, Error: err.Error()}
	}
	s.logger.Info("otp email sent", zap.String("mode", s.mode),
		zap.String("email", logging.MaskEmail(email)), zap.String("purpose", purpose))
	return SendResult{Success: true}
}

type gasRequest struct {
	Secret  string `json:"secret"`
	To      string `json:"to"`
	Code    string `json:"code"`
	Purpose string `json:"purpose"`
	Subject string `json:"subject"`
}

type gasResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// sendGAS posts to the Google Apps Script web app, which does the actual MailApp send.
func (s *emailService) sendGAS(ctx context.Context, email, code, purpose string) error {
	payload, err := json.Marshal(gasRequest{
		Secret:  s.apiSecret,
		To:      email,
		Code:    code,
		Purpose: purpose,
		Subject: subjectFor(purpose),
	})
	if err != nil {
		return fmt.Errorf("encode gas request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webAppURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gas request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("gas request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gas returned status %d", resp.StatusCode)
	}
	var result gasResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parse gas response: %w", err)
	}
	if !result.Success {
		if result.Error == "" {
			result.Error = "unknown error"
		}
		return fmt.Errorf("gas: %s", result.Error)
	}
	return nil
}

func (s *emailService) sendSMTP(ctx context.Context, email, code, purpose string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", subjectFor(purpose))
	m.SetBody("text/html", fmt.Sprintf(`
		<h3>%s</h3>
		<p>Your verification code is <strong>%s</strong>.</p>
		<p>It expires in a few minutes. If you did not request it, you can ignore this email.</p>
	`, subjectFor(purpose), code))

	if err := s.smtpSend(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func subjectFor(purpose string) string {
	if purpose == models.PurposeRegister {
		return "OB/OG portal registration code"
	}
	return "OB/OG portal login code"
}

// Recommendations turns the dispatcher status into operator hints for the admin
// diagnostics page.
func Recommendations(status EmailConfigStatus, production bool) []Recommendation {
	var out []Recommendation
	switch {
	case !status.IsConfigured && production:
		out = append(out, Recommendation{
			Type:    "warning",
			Message: "Email service is not configured in production. Set GAS_WEBAPP_URL and GAS_API_SECRET so users receive their codes.",
		})
	case !status.IsConfigured:
		out = append(out, Recommendation{
			Type:    "info",
			Message: "Running in development mode: codes are written to the server log and returned by send-otp instead of being emailed.",
		})
	case production:
		out = append(out, Recommendation{
			Type:    "success",
			Message: fmt.Sprintf("Email service is configured (%s) and ready for production.", status.Mode),
		})
	default:
		out = append(out, Recommendation{
			Type:    "info",
			Message: fmt.Sprintf("Email service is configured (%s). Codes are still returned by send-otp outside production.", status.Mode),
		})
	}
	return out
}

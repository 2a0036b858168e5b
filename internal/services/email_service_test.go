package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/gomail.v2"

	"obogportal/internal/config"
)

func TestEmailService_GASDelivers(t *testing.T) {
	var got gasRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	cfg := config.EmailConfig{GASWebAppURL: srv.URL, GASAPISecret: "s3cret", Timeout: time.Second}
	svc := NewEmailService(cfg, config.EmailModeGAS, true, zaptest.NewLogger(t))

	res := svc.SendOTPEmail(context.Background(), "user@example.com", "012345", "login")
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, "s3cret", got.Secret)
	assert.Equal(t, "user@example.com", got.To)
	assert.Equal(t, "012345", got.Code)
	assert.Equal(t, "login", got.Purpose)
}

func TestEmailService_GASReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"unauthorized"}`))
	}))
	defer srv.Close()

	cfg := config.EmailConfig{GASWebAppURL: srv.URL, GASAPISecret: "wrong", Timeout: time.Second}
	res := NewEmailService(cfg, config.EmailModeGAS, true, zaptest.NewLogger(t)).
		SendOTPEmail(context.Background(), "user@example.com", "123456", "login")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unauthorized")
}

func TestEmailService_GASHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := config.EmailConfig{GASWebAppURL: srv.URL, GASAPISecret: "s", Timeout: time.Second}
	res := NewEmailService(cfg, config.EmailModeGAS, false, zaptest.NewLogger(t)).
		SendOTPEmail(context.Background(), "user@example.com", "123456", "login")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "502")
}

func TestEmailService_SMTP(t *testing.T) {
	cfg := config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, FromEmail: "noreply@example.com", Timeout: time.Second}
	svc := NewEmailService(cfg, config.EmailModeSMTP, true, zaptest.NewLogger(t)).(*emailService)

	var sent *gomail.Message
	svc.smtpSend = func(_ context.Context, m *gomail.Message) error {
		sent = m
		return nil
	}
	res := svc.SendOTPEmail(context.Background(), "user@example.com", "654321", "register")
	require.True(t, res.Success)
	require.NotNil(t, sent)
	assert.Equal(t, []string{"user@example.com"}, sent.GetHeader("To"))
	assert.Equal(t, []string{"OB/OG portal registration code"}, sent.GetHeader("Subject"))

	svc.smtpSend = func(context.Context, *gomail.Message) error { return errors.New("535 auth failed") }
	res = svc.SendOTPEmail(context.Background(), "user@example.com", "654321", "login")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "535")
}

func TestEmailService_DevelopmentLogsCode(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	svc := NewEmailService(config.EmailConfig{}, config.EmailModeDevelopment, false, zap.New(core))

	res := svc.SendOTPEmail(context.Background(), "user@example.com", "000123", "login")
	assert.False(t, res.Success)
	assert.Equal(t, errNotConfigured, res.Error)

	entries := logs.FilterField(zap.String("code", "000123")).All()
	assert.Len(t, entries, 1)
}

func TestEmailService_UnconfiguredProductionHidesCode(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewEmailService(config.EmailConfig{}, config.EmailModeDevelopment, true, zap.New(core))

	res := svc.SendOTPEmail(context.Background(), "user@example.com", "000123", "login")
	assert.False(t, res.Success)
	assert.Zero(t, logs.FilterField(zap.String("code", "000123")).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestEmailService_CheckConfig(t *testing.T) {
	log := zaptest.NewLogger(t)
	assert.Equal(t, EmailConfigStatus{IsConfigured: true, Mode: "gas"},
		NewEmailService(config.EmailConfig{}, config.EmailModeGAS, true, log).CheckConfig())
	assert.Equal(t, EmailConfigStatus{IsConfigured: false, Mode: "development"},
		NewEmailService(config.EmailConfig{}, config.EmailModeDevelopment, false, log).CheckConfig())
}

func TestRecommendations(t *testing.T) {
	tests := []struct {
		name       string
		status     EmailConfigStatus
		production bool
		want       string
	}{
		{"unconfigured production", EmailConfigStatus{Mode: "development"}, true, "warning"},
		{"unconfigured development", EmailConfigStatus{Mode: "development"}, false, "info"},
		{"configured production", EmailConfigStatus{IsConfigured: true, Mode: "gas"}, true, "success"},
		{"configured development", EmailConfigStatus{IsConfigured: true, Mode: "gas"}, false, "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := Recommendations(tt.status, tt.production)
			require.NotEmpty(t, recs)
			assert.Equal(t, tt.want, recs[0].Type)
			assert.NotEmpty(t, recs[0].Message)
		})
	}
}

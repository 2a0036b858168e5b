package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"obogportal/internal/models"
	"obogportal/internal/services"
)

// CookieOptions describes the session cookie.
type CookieOptions struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	otp        services.OTPService
	sessions   services.SessionService
	cookie     CookieOptions
	production bool
}

func NewAuthHandler(otp services.OTPService, sessions services.SessionService, cookie CookieOptions, production bool) *AuthHandler {
	return &AuthHandler{otp: otp, sessions: sessions, cookie: cookie, production: production}
}

type SendOTPData struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	OTPCode   string    `json:"otp_code,omitempty"`
	EmailSent bool      `json:"email_sent"`
}

type VerifyOTPData struct {
	User      models.Identity `json:"user"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// @Summary      Request a one-time code
// @Description  Issues a 6-digit code for the email and dispatches it. Outside production the code is echoed back.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.SendOTPRequest  true  "Email and purpose (login by default)"
// @Success      200   {object}  Envelope{data=SendOTPData}
// @Failure      400   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Failure      429   {object}  Envelope
// @Failure      500   {object}  Envelope
// @Router       /api/auth/send-otp [post]
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req models.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	issue, err := h.otp.RequestOTP(c.Request.Context(), req.Email, req.Purpose)
	if err != nil {
		failErr(c, err)
		return
	}

	data := SendOTPData{Email: issue.Email, ExpiresAt: issue.ExpiresAt, EmailSent: issue.Delivered}
	if !h.production {
		data.OTPCode = issue.Code
	}
	msg := "Verification code sent"
	if !issue.Delivered {
		msg = "Verification code issued, but the email could not be delivered"
	}
	ok(c, http.StatusOK, msg, data)
}

// @Summary      Verify a one-time code
// @Description  Consumes the active code and starts a session (auth-token cookie).
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.VerifyOTPRequest  true  "Email, code and purpose"
// @Success      200   {object}  Envelope{data=VerifyOTPData}
// @Failure      400   {object}  Envelope
// @Failure      401   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Failure      410   {object}  Envelope
// @Failure      429   {object}  Envelope
// @Router       /api/auth/verify-otp [post]
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.otp.VerifyOTP(c.Request.Context(), req.Email, req.Code, req.Purpose)
	if err != nil {
		failErr(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, session.Token, int(h.sessions.TTL().Seconds()), "/", "", h.cookie.Secure, true)
	ok(c, http.StatusOK, "Signed in", VerifyOTPData{User: session.User, Token: session.Token, ExpiresAt: session.ExpiresAt})
}

// @Summary  Sign out
// @Tags     Auth
// @Produce  json
// @Success  200  {object}  Envelope
// @Router   /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	ok(c, http.StatusOK, "Signed out", nil)
}

// @Summary  Current user
// @Tags     Auth
// @Produce  json
// @Success  200  {object}  Envelope{data=map[string]models.Identity}
// @Failure  401  {object}  Envelope
// @Router   /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, found := currentUser(c)
	if !found {
		fail(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	ok(c, http.StatusOK, "", gin.H{"user": user})
}

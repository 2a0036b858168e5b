package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"obogportal/internal/services"
)

type AdminHandler struct {
	emails      services.EmailService
	users       services.UserService
	environment string
	production  bool
}

func NewAdminHandler(emails services.EmailService, users services.UserService, environment string, production bool) *AdminHandler {
	return &AdminHandler{emails: emails, users: users, environment: environment, production: production}
}

type EmailConfigData struct {
	EmailService    services.EmailConfigStatus `json:"email_service"`
	Environment     string                     `json:"environment"`
	Recommendations []services.Recommendation  `json:"recommendations"`
}

// @Summary      Email dispatcher diagnostics
// @Description  Reports whether OTP email delivery is configured, with operator recommendations.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  Envelope{data=EmailConfigData}
// @Failure      403  {object}  Envelope
// @Failure      500  {object}  Envelope
// @Router       /api/admin/email-config [get]
func (h *AdminHandler) EmailConfig(c *gin.Context) {
	status := h.emails.CheckConfig()
	ok(c, http.StatusOK, "", EmailConfigData{
		EmailService:    status,
		Environment:     h.environment,
		Recommendations: services.Recommendations(status, h.production),
	})
}

// @Summary  Member roster as PDF
// @Tags     Admin
// @Produce  application/pdf
// @Success  200  {file}    binary
// @Failure  403  {object}  Envelope
// @Failure  500  {object}  Envelope
// @Router   /api/admin/users/roster.pdf [get]
func (h *AdminHandler) RosterPDF(c *gin.Context) {
	var by string
	if user, found := currentUser(c); found {
		by = user.Email
	}

	var buf bytes.Buffer
	if err := h.users.WriteRosterPDF(c.Request.Context(), &buf, by); err != nil {
		failErr(c, err)
		return
	}
	name := fmt.Sprintf("roster-%s.pdf", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

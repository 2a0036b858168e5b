package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"obogportal/internal/services"
)

type DebugHandler struct {
	users services.UserService
}

func NewDebugHandler(users services.UserService) *DebugHandler {
	return &DebugHandler{users: users}
}

// @Summary      Dump auth tables
// @Description  Admin only. Lists users, profiles and recent OTP issuances.
// @Tags         Debug
// @Produce      json
// @Success      200  {object}  Envelope{data=services.DebugSnapshot}
// @Failure      403  {object}  Envelope
// @Failure      500  {object}  Envelope
// @Router       /api/debug/users [get]
func (h *DebugHandler) Users(c *gin.Context) {
	snap, err := h.users.DebugSnapshot(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "", snap)
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
)

// Handler serves the health and metrics endpoints.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"time":   time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now(),
	})
}

func (h *Handler) MetricsHandler(c *gin.Context) {
	promhttp.Handler().ServeHTTP(c.Writer, c.Request)
}

// Context keys set by the auth middleware.
const (
	CtxUserID = "userID"
	CtxRole   = "userRole"
)

// CurrentUser reads the authenticated caller from the gin context.
func CurrentUser(c *gin.Context) (uuid.UUID, model.Role, bool) {
	rawID, ok := c.Get(CtxUserID)
	if !ok {
		return uuid.Nil, "", false
	}
	id, ok := rawID.(uuid.UUID)
	if !ok {
		return uuid.Nil, "", false
	}
	rawRole, _ := c.Get(CtxRole)
	role, _ := rawRole.(model.Role)
	return id, role, true
}

// RespondError maps an application error onto its HTTP status with a
// message safe to expose.
func RespondError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)
	status := appErr.HTTPStatus()

	message := appErr.Message
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs.
		message = "internal server error"
	}

	_ = c.Error(err)
	c.JSON(status, NewErrorResponse(message))
}

package lgpd

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/handler"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/audit"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/connection"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/consent"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/lifecycle"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
)

// Handler exposes the data-subject rights surface: consent management,
// the audit trail, data export and account deletion.
type Handler struct {
	consents  *consent.Service
	audits    *audit.Service
	lifecycle *lifecycle.Service
}

func NewHandler(consents *consent.Service, audits *audit.Service, lc *lifecycle.Service) *Handler {
	return &Handler{
		consents:  consents,
		audits:    audits,
		lifecycle: lc,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	lgpd := r.Group("/lgpd")
	{
		lgpd.GET("/consents", h.GetConsents)
		lgpd.PUT("/consents", h.UpdateConsent)
		lgpd.GET("/consents/history", h.GetConsentHistory)
		lgpd.GET("/audit-logs", h.GetAuditLogs)
		lgpd.GET("/export-data", h.ExportData)
		lgpd.POST("/delete-account", h.RequestDeletion)
		lgpd.GET("/delete-account", h.ListDeletionRequests)
	}
}

// GetConsents returns the caller's current consent state, one record
// per consent type.
func (h *Handler) GetConsents(c *gin.Context) {
	userID, _, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	current, err := h.consents.CurrentConsents(c.Request.Context(), userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(current))
}

func (h *Handler) UpdateConsent(c *gin.Context) {
	userID, _, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	var req model.UpdateConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.Validation(err.Error(), err))
		return
	}

	err := h.consents.Record(c.Request.Context(), consent.RecordParams{
		UserID:      userID,
		ConsentType: req.ConsentType,
		Granted:     *req.Granted,
		Version:     req.Version,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.GetHeader("User-Agent"),
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("consent recorded"))
}

func (h *Handler) GetConsentHistory(c *gin.Context) {
	userID, _, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	history, err := h.consents.History(c.Request.Context(), userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(history))
}

// GetAuditLogs lists access entries about the caller, newest first.
func (h *Handler) GetAuditLogs(c *gin.Context) {
	userID, _, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, err := h.audits.Query(c.Request.Context(), userID, limit, offset)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(logs))
}

// ExportData streams the complete data bundle as a JSON download.
func (h *Handler) ExportData(c *gin.Context) {
	userID, _, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	bundle, err := h.lifecycle.Export(c.Request.Context(), userID, requestMeta(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	filename := fmt.Sprintf("qsm-h-export-%s.json", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.JSON(http.StatusOK, bundle)
}

func (h *Handler) RequestDeletion(c *gin.Context) {
	userID, _, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	var req model.DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.Validation(err.Error(), err))
		return
	}

	request, err := h.lifecycle.RequestDeletion(c.Request.Context(), userID, req.Reason, req.DeleteType, requestMeta(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	// Immediate erasure leaves nothing behind to return.
	if request == nil {
		c.JSON(http.StatusOK, handler.NewMessageResponse("account deleted"))
		return
	}

	c.JSON(http.StatusAccepted, handler.NewSuccessResponse(request))
}

func (h *Handler) ListDeletionRequests(c *gin.Context) {
	userID, _, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	requests, err := h.lifecycle.ListDeletionRequests(c.Request.Context(), userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(requests))
}

func requestMeta(c *gin.Context) connection.RequestMeta {
	return connection.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

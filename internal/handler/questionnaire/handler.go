package questionnaire

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/handler"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/connection"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/insight"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/questionnaire"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
)

type Handler struct {
	service  *questionnaire.Service
	insights *insight.Service
}

func NewHandler(service *questionnaire.Service, insights *insight.Service) *Handler {
	return &Handler{service: service, insights: insights}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/questionnaires", h.Submit)
	r.GET("/questionnaires", h.ListOwn)
	r.GET("/insights", h.OwnInsights)
	r.GET("/patients/:id/questionnaires", h.ListForPatient)
	r.GET("/patients/:id/insights", h.PatientInsights)
}

func (h *Handler) Submit(c *gin.Context) {
	userID, role, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}
	if role != model.RolePatient {
		handler.RespondError(c, apperrors.Forbidden("only patients submit questionnaires", nil))
		return
	}

	var req model.SubmitQuestionnaireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.Validation(err.Error(), err))
		return
	}

	q, err := h.service.Submit(c.Request.Context(), userID, &req, requestMeta(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(q))
}

func (h *Handler) ListOwn(c *gin.Context) {
	userID, _, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	items, err := h.service.ListOwn(c.Request.Context(), userID, requestMeta(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(items))
}

func (h *Handler) OwnInsights(c *gin.Context) {
	userID, _, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	report, err := h.insights.ForPatient(c.Request.Context(), userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(report))
}

// ListForPatient lets a connected doctor read a patient's history.
func (h *Handler) ListForPatient(c *gin.Context) {
	userID, role, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}
	if role != model.RoleDoctor {
		handler.RespondError(c, apperrors.Forbidden("only doctors access patient records", nil))
		return
	}

	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.Validation("invalid patient ID", err))
		return
	}

	items, err := h.service.ListForDoctor(c.Request.Context(), userID, patientID, requestMeta(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(items))
}

func (h *Handler) PatientInsights(c *gin.Context) {
	userID, role, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}
	if role != model.RoleDoctor {
		handler.RespondError(c, apperrors.Forbidden("only doctors access patient records", nil))
		return
	}

	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.Validation("invalid patient ID", err))
		return
	}

	report, err := h.insights.ForDoctor(c.Request.Context(), userID, patientID, requestMeta(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(report))
}

func requestMeta(c *gin.Context) connection.RequestMeta {
	return connection.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

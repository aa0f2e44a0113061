package connection

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/handler"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/connection"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
)

type Handler struct {
	service *connection.Service
}

func NewHandler(service *connection.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/invites", h.CreateInvite)
	r.GET("/invites", h.ListInvites)
	r.PATCH("/invites/:id", h.ResolveInvite)
	r.DELETE("/invites/:id", h.CancelInvite)
	r.GET("/connections", h.ListConnections)
	r.DELETE("/connections/:id", h.Disconnect)
}

func (h *Handler) CreateInvite(c *gin.Context) {
	userID, role, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	var req model.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.Validation(err.Error(), err))
		return
	}

	conn, err := h.service.Invite(c.Request.Context(), userID, role, req.TargetEmail, requestMeta(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(conn))
}

func (h *Handler) ListInvites(c *gin.Context) {
	userID, role, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	invites, err := h.service.ListPending(c.Request.Context(), userID, role)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(invites))
}

// ResolveInvite accepts or rejects a pending invite. Only the invited
// patient may resolve it.
func (h *Handler) ResolveInvite(c *gin.Context) {
	userID, _, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	inviteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.Validation("invalid invite ID", err))
		return
	}

	var req model.InviteActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.Validation(err.Error(), err))
		return
	}

	meta := requestMeta(c)
	switch req.Action {
	case "accept":
		err = h.service.Accept(c.Request.Context(), inviteID, userID, meta)
	case "reject":
		err = h.service.Reject(c.Request.Context(), inviteID, userID, meta)
	}
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("invite "+req.Action+"ed"))
}

// CancelInvite withdraws a pending invite created by the caller.
func (h *Handler) CancelInvite(c *gin.Context) {
	userID, _, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	inviteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.Validation("invalid invite ID", err))
		return
	}

	if err := h.service.Cancel(c.Request.Context(), inviteID, userID, requestMeta(c)); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("invite cancelled"))
}

func (h *Handler) ListConnections(c *gin.Context) {
	userID, role, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	conns, err := h.service.ListActive(c.Request.Context(), userID, role)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(conns))
}

func (h *Handler) Disconnect(c *gin.Context) {
	userID, _, ok := handler.CurrentUser(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthenticated(nil))
		return
	}

	connID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.Validation("invalid connection ID", err))
		return
	}

	if err := h.service.Disconnect(c.Request.Context(), connID, userID, requestMeta(c)); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("connection removed"))
}

func requestMeta(c *gin.Context) connection.RequestMeta {
	return connection.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

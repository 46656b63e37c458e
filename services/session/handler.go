package session

import (
	"net/http"

	"mission-control/pkg/httpapi"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/sessions", h.list)
	r.POST("/sessions", h.upsert)
	r.GET("/sessions/:sessionId", h.get)
	r.DELETE("/sessions/:sessionId", h.delete)
	r.POST("/sessions/:sessionId/heartbeat", h.heartbeat)
	r.PATCH("/sessions/:sessionId/status", h.status)
	r.GET("/stats/sessions", h.summary)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), Status(c.Query("status")), c.Query("agentId"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) upsert(c *gin.Context) {
	var req UpsertRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	item, err := h.svc.Upsert(c.Request.Context(), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) get(c *gin.Context) {
	item, err := h.svc.Get(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("sessionId")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) heartbeat(c *gin.Context) {
	item, err := h.svc.Heartbeat(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) status(c *gin.Context) {
	var req StatusRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	item, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("sessionId"), req.Status)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) summary(c *gin.Context) {
	out, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

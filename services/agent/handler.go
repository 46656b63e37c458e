package agent

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
	r.GET("/agents", h.list)
	r.POST("/agents", h.create)
	r.GET("/agents/:id", h.get)
	r.PATCH("/agents/:id", h.update)
	r.DELETE("/agents/:id", h.delete)
	r.POST("/agents/:id/heartbeat", h.heartbeat)
	r.POST("/heartbeats", h.heartbeatByName)
}

func (h *Handler) list(c *gin.Context) {
	agents, err := h.svc.List(c.Request.Context(), httpapi.QueryBool(c, "active"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": agents})
}

func (h *Handler) get(c *gin.Context) {
	a, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	a, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	a, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) heartbeat(c *gin.Context) {
	a, err := h.svc.Heartbeat(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// heartbeatByName answers null when no agent matches.
func (h *Handler) heartbeatByName(c *gin.Context) {
	var req HeartbeatRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	a, err := h.svc.HeartbeatByName(c.Request.Context(), req.OpenclawAgentID)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

package message

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
	r.GET("/messages", h.list)
	r.POST("/messages", h.create)
	r.GET("/messages/:id/replies", h.replies)
	r.GET("/tasks/:id/messages", h.listByTask)
}

func (h *Handler) list(c *gin.Context) {
	p, err := httpapi.Page(c)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}

	page, err := h.svc.List(c.Request.Context(), p)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	item, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) replies(c *gin.Context) {
	items, err := h.svc.Replies(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) listByTask(c *gin.Context) {
	items, err := h.svc.ListByTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

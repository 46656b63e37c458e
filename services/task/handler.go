package task

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
	r.GET("/tasks", h.list)
	r.POST("/tasks", h.create)
	r.GET("/tasks/:id", h.get)
	r.PATCH("/tasks/:id", h.update)
	r.DELETE("/tasks/:id", h.delete)
	r.PATCH("/tasks/:id/status", h.updateStatus)
	r.PATCH("/tasks/:id/assignee", h.assign)
	r.GET("/board", h.board)
}

func (h *Handler) list(c *gin.Context) {
	p, err := httpapi.Page(c)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}

	page, err := h.svc.List(c.Request.Context(), ListFilter{
		Status:     c.Query("status"),
		Product:    c.Query("product"),
		AssigneeID: c.Query("assigneeId"),
	}, p)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) board(c *gin.Context) {
	board, err := h.svc.Board(c.Request.Context(), c.Query("product"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *Handler) get(c *gin.Context) {
	item, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
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

func (h *Handler) update(c *gin.Context) {
	var req UpdateRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	item, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req StatusRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	item, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) assign(c *gin.Context) {
	var req AssignRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	item, err := h.svc.Assign(c.Request.Context(), c.Param("id"), req.AgentID)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package recurring

import (
	"context"
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
	r.GET("/recurring", h.list)
	r.POST("/recurring", h.create)
	r.GET("/recurring/:name", h.get)
	r.PATCH("/recurring/:name", h.update)
	r.DELETE("/recurring/:name", h.delete)
	r.POST("/recurring/:name/runs", h.recordRun)
	r.POST("/recurring/:name/retry", h.transition(h.svc.Retry))
	r.POST("/recurring/:name/pause", h.transition(h.svc.Pause))
	r.POST("/recurring/:name/resume", h.transition(h.svc.Resume))
	r.POST("/recurring/:name/complete", h.transition(h.svc.Complete))
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), Status(c.Query("status")))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) create(c *gin.Context) {
	var req CreateRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	t, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) get(c *gin.Context) {
	t, err := h.svc.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	t, err := h.svc.Update(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("name")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) recordRun(c *gin.Context) {
	var req RunResult
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	t, err := h.svc.RecordRun(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) transition(fn func(context.Context, string) (*Task, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := fn(c.Request.Context(), c.Param("name"))
		if err != nil {
			httpapi.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

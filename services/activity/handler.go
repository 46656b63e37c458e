package activity

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
	r.POST("/activity", h.create)
	r.GET("/activity", h.list)
	r.GET("/activity/type/:type", h.listByType)
	r.GET("/agents/:id/activity", h.listByAgent)
	r.GET("/stats/activity", h.stats)
}

// create is the agent runtime ingress.
func (h *Handler) create(c *gin.Context) {
	var req CreateRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	record, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, CreateResponse{Success: true, ActivityID: record.ID})
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

func (h *Handler) listByType(c *gin.Context) {
	limit, err := httpapi.QueryInt(c, "limit", 0)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}

	items, err := h.svc.ListByType(c.Request.Context(), c.Param("type"), limit)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) listByAgent(c *gin.Context) {
	limit, err := httpapi.QueryInt(c, "limit", 0)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}

	items, err := h.svc.ListByAgent(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) stats(c *gin.Context) {
	since, err := httpapi.QueryInt64(c, "since", 0)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), since)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

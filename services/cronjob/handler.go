package cronjob

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
	r.GET("/cron", h.list)
	r.POST("/cron/sync", h.sync)
	r.GET("/cron/:openclawId", h.get)
	r.PATCH("/cron/:openclawId/status", h.status)
	r.DELETE("/cron/:openclawId", h.delete)
	r.GET("/calendar", h.calendar)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), httpapi.QueryBool(c, "active"), c.Query("agentId"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) sync(c *gin.Context) {
	var req SyncRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		httpapi.Abort(c, err)
		return
	}

	res, err := h.svc.Sync(c.Request.Context(), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) get(c *gin.Context) {
	item, err := h.svc.Get(c.Request.Context(), c.Param("openclawId"))
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

	item, err := h.svc.RecordStatus(c.Request.Context(), c.Param("openclawId"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("openclawId")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) calendar(c *gin.Context) {
	from, err := httpapi.QueryInt64(c, "from", 0)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	to, err := httpapi.QueryInt64(c, "to", 0)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}

	items, err := h.svc.Upcoming(c.Request.Context(), from, to)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

package memory

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
	r.GET("/memories", h.list)
	r.POST("/memories", h.create)
	r.POST("/memories/backfill", h.backfill)
	r.GET("/memories/:id", h.get)
	r.DELETE("/memories/:id", h.delete)
	r.GET("/search/memories", h.search)
}

func (h *Handler) list(c *gin.Context) {
	limit, err := httpapi.QueryInt(c, "limit", 0)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}

	items, err := h.svc.List(c.Request.Context(), ListFilter{
		Category: Category(c.Query("category")),
		AgentID:  c.Query("agentId"),
		Limit:    limit,
	})
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

	create := h.svc.Create
	if httpapi.QueryBool(c, "embed") {
		create = h.svc.CreateWithEmbedding
	}

	item, err := create(c.Request.Context(), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) get(c *gin.Context) {
	item, err := h.svc.Get(c.Request.Context(), c.Param("id"))
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

func (h *Handler) backfill(c *gin.Context) {
	batch, err := httpapi.QueryInt(c, "batchSize", DefaultBackfillBatch)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}

	queued, filled, err := h.svc.ScheduleBackfill(c.Request.Context(), batch)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	if queued {
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": false, "filled": filled})
}

func (h *Handler) search(c *gin.Context) {
	limit, err := httpapi.QueryInt(c, "limit", 0)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}

	req := SearchRequest{
		Query:    c.Query("q"),
		Mode:     Mode(c.Query("mode")),
		Category: Category(c.Query("category")),
		Limit:    limit,
	}
	if c.Query("vectorWeight") != "" {
		w, err := httpapi.QueryFloat(c, "vectorWeight", 0)
		if err != nil {
			httpapi.Abort(c, err)
			return
		}
		req.VectorWeight = &w
	}

	results, err := h.svc.Search(c.Request.Context(), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": results})
}

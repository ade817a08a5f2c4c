// Package handlers implements the REST surface of the hub.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"domainhub.io/hubd/internal/api/middleware"
	apperrors "domainhub.io/hubd/internal/pkg/errors"
	"domainhub.io/hubd/internal/service"
	"domainhub.io/hubd/internal/stream"
)

// Handler bundles the services behind the REST routes.
type Handler struct {
	servers     *service.ServerService
	domains     *service.DomainService
	assignments *service.AssignmentService
	planner     *service.PlannerService
	groups      *service.GroupService
	locks       *service.LockRegistry
	stats       *service.StatsService
	exports     *service.ExportService
	hub         *stream.Hub
}

// New creates the handler set.
func New(
	servers *service.ServerService,
	domains *service.DomainService,
	assignments *service.AssignmentService,
	planner *service.PlannerService,
	groups *service.GroupService,
	locks *service.LockRegistry,
	stats *service.StatsService,
	exports *service.ExportService,
	hub *stream.Hub,
) *Handler {
	return &Handler{
		servers:     servers,
		domains:     domains,
		assignments: assignments,
		planner:     planner,
		groups:      groups,
		locks:       locks,
		stats:       stats,
		exports:     exports,
		hub:         hub,
	}
}

// pathID parses the named int64 path parameter, aborting with a
// validation error when malformed.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid "+name))
		return 0, false
	}
	return id, true
}

// principal returns the authenticated actor for the request.
func principal(c *gin.Context) string {
	return middleware.GetPrincipal(c.Request.Context())
}

// pagination reads page/per_page query parameters with sane bounds.
func pagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 500 {
		perPage = 50
	}
	return page, perPage
}

// queryInt64 reads an optional int64 query parameter.
func queryInt64(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid "+name))
		return nil, false
	}
	return &v, true
}

func bindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, err.Error()))
		return false
	}
	return true
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.hub.SessionCount(),
	})
}

// WS handles GET /ws.
func (h *Handler) WS(c *gin.Context) {
	h.hub.HandleWS(c.Writer, c.Request)
}

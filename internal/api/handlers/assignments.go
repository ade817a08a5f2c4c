package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"domainhub.io/hubd/internal/repository"
	"domainhub.io/hubd/internal/service"
)

// ListAssignments handles GET /assignments.
func (h *Handler) ListAssignments(c *gin.Context) {
	serverID, ok := queryInt64(c, "server_id")
	if !ok {
		return
	}
	domainID, ok := queryInt64(c, "domain_id")
	if !ok {
		return
	}
	groupID, ok := queryInt64(c, "group_id")
	if !ok {
		return
	}

	list, err := h.assignments.List(c.Request.Context(), repository.AssignmentFilter{
		ServerID: serverID,
		DomainID: domainID,
		GroupID:  groupID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

// CreateAssignment handles POST /assignments.
func (h *Handler) CreateAssignment(c *gin.Context) {
	var in struct {
		DomainID int64 `json:"domain_id" binding:"required"`
		ServerID int64 `json:"server_id" binding:"required"`
	}
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.assignments.Assign(c.Request.Context(), in.DomainID, in.ServerID, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// DeleteAssignment handles DELETE /assignments/:id.
func (h *Handler) DeleteAssignment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.assignments.Unassign(c.Request.Context(), id, principal(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkAssign handles POST /assignments/bulk.
func (h *Handler) BulkAssign(c *gin.Context) {
	var in struct {
		DomainIDs []int64 `json:"domain_ids" binding:"required"`
		ServerID  int64   `json:"server_id" binding:"required"`
	}
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.assignments.BulkAssign(c.Request.Context(), in.DomainIDs, in.ServerID, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// AutoAssign handles POST /assignments/auto.
func (h *Handler) AutoAssign(c *gin.Context) {
	var req service.AutoAssignRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.planner.AutoAssign(c.Request.Context(), req, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// UnassignServer handles DELETE /assignments/server/:id.
func (h *Handler) UnassignServer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	count, err := h.assignments.UnassignAll(c.Request.Context(), id, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": count})
}

// UnassignDomain handles DELETE /assignments/domain/:id.
func (h *Handler) UnassignDomain(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.assignments.UnassignDomain(c.Request.Context(), id, principal(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats handles GET /assignments/stats.
func (h *Handler) Stats(c *gin.Context) {
	st, err := h.stats.Overview(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// CapacityReport handles GET /assignments/capacity-report.
func (h *Handler) CapacityReport(c *gin.Context) {
	report, err := h.stats.Capacity(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

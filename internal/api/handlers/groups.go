package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"domainhub.io/hubd/internal/service"
)

// ListGroups handles GET /groups.
func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.groups.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": groups})
}

// GetGroup handles GET /groups/:id.
func (h *Handler) GetGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	g, err := h.groups.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// CreateGroup handles POST /groups.
func (h *Handler) CreateGroup(c *gin.Context) {
	var in service.GroupInput
	if !bindJSON(c, &in) {
		return
	}
	g, err := h.groups.Create(c.Request.Context(), in, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// UpdateGroup handles PUT /groups/:id.
func (h *Handler) UpdateGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in service.GroupInput
	if !bindJSON(c, &in) {
		return
	}
	g, err := h.groups.Update(c.Request.Context(), id, in, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// DeleteGroup handles DELETE /groups/:id.
func (h *Handler) DeleteGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.groups.Delete(c.Request.Context(), id, principal(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListGroupMembers handles GET /groups/:id/servers.
func (h *Handler) ListGroupMembers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	servers, err := h.groups.Members(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": servers})
}

// AddGroupMembers handles POST /groups/:id/servers.
func (h *Handler) AddGroupMembers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in struct {
		ServerIDs []int64 `json:"server_ids" binding:"required"`
	}
	if !bindJSON(c, &in) {
		return
	}
	g, err := h.groups.AddServers(c.Request.Context(), id, in.ServerIDs, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// RemoveGroupMembers handles DELETE /groups/:id/servers.
func (h *Handler) RemoveGroupMembers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in struct {
		ServerIDs []int64 `json:"server_ids" binding:"required"`
	}
	if !bindJSON(c, &in) {
		return
	}
	g, err := h.groups.RemoveServers(c.Request.Context(), id, in.ServerIDs, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// ListUngroupedServers handles GET /groups/ungrouped/servers.
func (h *Handler) ListUngroupedServers(c *gin.Context) {
	servers, err := h.groups.Ungrouped(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": servers})
}

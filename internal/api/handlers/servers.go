package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"domainhub.io/hubd/internal/inventory"
	"domainhub.io/hubd/internal/repository"
	"domainhub.io/hubd/internal/service"
)

// ListServers handles GET /servers.
func (h *Handler) ListServers(c *gin.Context) {
	page, perPage := pagination(c)
	groupID, ok := queryInt64(c, "group_id")
	if !ok {
		return
	}

	filter := repository.ServerFilter{
		GroupID:       groupID,
		Ungrouped:     c.Query("ungrouped") == "true",
		AvailableOnly: c.Query("available") == "true",
		Unlocked:      c.Query("unlocked") == "true",
		Page:          page,
		PerPage:       perPage,
	}
	if raw := c.Query("status"); raw != "" {
		status := inventory.ServerStatus(raw)
		filter.Status = &status
	}
	servers, total, err := h.servers.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": servers, "total": total, "page": page, "per_page": perPage})
}

// GetServer handles GET /servers/:id.
func (h *Handler) GetServer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	srv, err := h.servers.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, srv)
}

// CreateServer handles POST /servers.
func (h *Handler) CreateServer(c *gin.Context) {
	var in service.CreateServerInput
	if !bindJSON(c, &in) {
		return
	}
	srv, err := h.servers.Create(c.Request.Context(), in, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, srv)
}

// UpdateServer handles PUT /servers/:id.
func (h *Handler) UpdateServer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in service.UpdateServerInput
	if !bindJSON(c, &in) {
		return
	}
	srv, err := h.servers.Update(c.Request.Context(), id, in, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, srv)
}

// DeleteServer handles DELETE /servers/:id.
func (h *Handler) DeleteServer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.servers.Delete(c.Request.Context(), id, principal(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkCreateServers handles POST /servers/bulk.
func (h *Handler) BulkCreateServers(c *gin.Context) {
	var in struct {
		Text         string                 `json:"text" binding:"required"`
		CapacityMode inventory.CapacityMode `json:"capacity_mode"`
	}
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.servers.BulkImport(c.Request.Context(), in.Text, in.CapacityMode, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ToggleServerCentralConfig handles POST /servers/:id/toggle-central-config.
func (h *Handler) ToggleServerCentralConfig(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	srv, err := h.servers.ToggleCentralConfig(c.Request.Context(), id, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, srv)
}

// LockServer handles POST /servers/:id/lock.
func (h *Handler) LockServer(c *gin.Context) {
	h.lockOp(c, inventory.KindServer, h.locks.Acquire)
}

// UnlockServer handles POST /servers/:id/unlock.
func (h *Handler) UnlockServer(c *gin.Context) {
	h.lockOp(c, inventory.KindServer, h.locks.Release)
}

// ToggleServerLock handles POST /servers/:id/toggle-lock.
func (h *Handler) ToggleServerLock(c *gin.Context) {
	h.lockOp(c, inventory.KindServer, h.locks.Toggle)
}

type lockFunc func(ctx context.Context, kind inventory.ResourceKind, id int64, principal string) (*service.LockState, error)

func (h *Handler) lockOp(c *gin.Context, kind inventory.ResourceKind, op lockFunc) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	state, err := op(c.Request.Context(), kind, id, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, state)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"domainhub.io/hubd/internal/inventory"
	"domainhub.io/hubd/internal/repository"
	"domainhub.io/hubd/internal/service"
)

// ListDomains handles GET /domains.
func (h *Handler) ListDomains(c *gin.Context) {
	page, perPage := pagination(c)
	filter := repository.DomainFilter{
		Search:  c.Query("search"),
		Tag:     c.Query("tag"),
		Page:    page,
		PerPage: perPage,
	}
	if raw := c.Query("status"); raw != "" {
		status := inventory.DomainStatus(raw)
		filter.Status = &status
	}
	domains, total, err := h.domains.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": domains, "total": total, "page": page, "per_page": perPage})
}

// ListFreeDomains handles GET /domains/free.
func (h *Handler) ListFreeDomains(c *gin.Context) {
	free := inventory.DomainFree
	domains, _, err := h.domains.List(c.Request.Context(), repository.DomainFilter{Status: &free})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": domains})
}

// GetDomain handles GET /domains/:id.
func (h *Handler) GetDomain(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := h.domains.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// CreateDomain handles POST /domains.
func (h *Handler) CreateDomain(c *gin.Context) {
	var in service.CreateDomainInput
	if !bindJSON(c, &in) {
		return
	}
	d, err := h.domains.Create(c.Request.Context(), in, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// UpdateDomain handles PUT /domains/:id.
func (h *Handler) UpdateDomain(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in service.UpdateDomainInput
	if !bindJSON(c, &in) {
		return
	}
	d, err := h.domains.Update(c.Request.Context(), id, in, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// DeleteDomain handles DELETE /domains/:id.
func (h *Handler) DeleteDomain(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.domains.Delete(c.Request.Context(), id, principal(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkCreateDomains handles POST /domains/bulk.
func (h *Handler) BulkCreateDomains(c *gin.Context) {
	var in struct {
		Text string   `json:"text" binding:"required"`
		Tags []string `json:"tags"`
	}
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.domains.BulkImport(c.Request.Context(), in.Text, in.Tags, principal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// LockDomain handles POST /domains/:id/lock.
func (h *Handler) LockDomain(c *gin.Context) {
	h.lockOp(c, inventory.KindDomain, h.locks.Acquire)
}

// UnlockDomain handles POST /domains/:id/unlock.
func (h *Handler) UnlockDomain(c *gin.Context) {
	h.lockOp(c, inventory.KindDomain, h.locks.Release)
}

// ToggleDomainLock handles POST /domains/:id/toggle-lock.
func (h *Handler) ToggleDomainLock(c *gin.Context) {
	h.lockOp(c, inventory.KindDomain, h.locks.Toggle)
}

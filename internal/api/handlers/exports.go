package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "domainhub.io/hubd/internal/pkg/errors"
	"domainhub.io/hubd/internal/service"
)

// ExportDomainHub handles GET /export/domain-hub.
func (h *Handler) ExportDomainHub(c *gin.Context) {
	scope := service.ExportScope{}
	if raw := c.Query("server_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid server_id"))
			return
		}
		scope.ServerID = id
	}
	if raw := c.Query("group_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid group_id"))
			return
		}
		scope.GroupID = id
	}

	text, err := h.exports.DomainHub(c.Request.Context(), scope)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=domain-hub-%s.txt", time.Now().UTC().Format("20060102-150405")))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// ExportCSV handles GET /export/csv.
func (h *Handler) ExportCSV(c *gin.Context) {
	data, err := h.exports.CSV(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=assignments-%s.csv", time.Now().UTC().Format("20060102-150405")))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// ExportServerConfig handles GET /export/server/:id/config.
func (h *Handler) ExportServerConfig(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.exports.ServerConfig(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

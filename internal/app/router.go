package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"domainhub.io/hubd/internal/api/handlers"
	"domainhub.io/hubd/internal/api/middleware"
	"domainhub.io/hubd/internal/config"
)

// Public routes that do NOT require authentication.
var publicPrefixes = []string{
	"/healthz",
	"/ws",
}

func newRouter(cfg *config.Config, h *handlers.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(authSkipPublic(cfg))

	router.GET("/healthz", h.Healthz)
	router.GET("/ws", h.WS)

	v1 := router.Group("/api/v1")
	{
		servers := v1.Group("/servers")
		{
			servers.GET("", h.ListServers)
			servers.POST("", h.CreateServer)
			servers.POST("/bulk", h.BulkCreateServers)
			servers.GET("/:id", h.GetServer)
			servers.PUT("/:id", h.UpdateServer)
			servers.DELETE("/:id", h.DeleteServer)
			servers.POST("/:id/lock", h.LockServer)
			servers.POST("/:id/unlock", h.UnlockServer)
			servers.POST("/:id/toggle-lock", h.ToggleServerLock)
			servers.POST("/:id/toggle-central-config", h.ToggleServerCentralConfig)
		}

		domains := v1.Group("/domains")
		{
			domains.GET("", h.ListDomains)
			domains.GET("/free", h.ListFreeDomains)
			domains.POST("", h.CreateDomain)
			domains.POST("/bulk", h.BulkCreateDomains)
			domains.GET("/:id", h.GetDomain)
			domains.PUT("/:id", h.UpdateDomain)
			domains.DELETE("/:id", h.DeleteDomain)
			domains.POST("/:id/lock", h.LockDomain)
			domains.POST("/:id/unlock", h.UnlockDomain)
			domains.POST("/:id/toggle-lock", h.ToggleDomainLock)
		}

		assignments := v1.Group("/assignments")
		{
			assignments.GET("", h.ListAssignments)
			assignments.POST("", h.CreateAssignment)
			assignments.POST("/bulk", h.BulkAssign)
			assignments.POST("/auto", h.AutoAssign)
			assignments.GET("/stats", h.Stats)
			assignments.GET("/capacity-report", h.CapacityReport)
			assignments.DELETE("/:id", h.DeleteAssignment)
			assignments.DELETE("/server/:id", h.UnassignServer)
			assignments.DELETE("/domain/:id", h.UnassignDomain)
		}

		groups := v1.Group("/groups")
		{
			groups.GET("", h.ListGroups)
			groups.POST("", h.CreateGroup)
			groups.GET("/ungrouped/servers", h.ListUngroupedServers)
			groups.GET("/:id", h.GetGroup)
			groups.PUT("/:id", h.UpdateGroup)
			groups.DELETE("/:id", h.DeleteGroup)
			groups.GET("/:id/servers", h.ListGroupMembers)
			groups.POST("/:id/servers", h.AddGroupMembers)
			groups.DELETE("/:id/servers", h.RemoveGroupMembers)
		}

		export := v1.Group("/export")
		{
			export.GET("/domain-hub", h.ExportDomainHub)
			export.GET("/csv", h.ExportCSV)
			export.GET("/server/:id/config", h.ExportServerConfig)
		}
	}

	return router
}

// authSkipPublic applies principal resolution only on non-public routes.
func authSkipPublic(cfg *config.Config) gin.HandlerFunc {
	authMw := middleware.Auth([]byte(cfg.Auth.SigningKey), cfg.Auth.DevPrincipalHeader)
	return func(c *gin.Context) {
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}
		authMw(c)
	}
}

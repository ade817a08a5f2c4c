package app

import (
	"domainhub.io/hubd/internal/pkg/logger"
)

// Shutdown gracefully shuts down all application components. Order
// matters: the stream hub stops fanning out before the worker pool and
// database go away.
func (a *Application) Shutdown() {
	if a.Hub != nil {
		a.Hub.Shutdown()
		logger.Info("Stream hub stopped")
	}
	if a.Pool != nil {
		a.Pool.Shutdown()
		logger.Info("Worker pool stopped")
	}
	if a.DB != nil {
		a.DB.Close()
		logger.Info("Database pool closed")
	}
}

package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const defaultPingTimeout = 2 * time.Second

// Health reports whether the backing store is reachable. It replaces the usual
// process-wide connectivity flag with state that request handling can query
// per call.
type Health struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewHealth constructs a Health check over the database handle.
func NewHealth(db *gorm.DB) *Health {
	return &Health{db: db, timeout: defaultPingTimeout}
}

// Available pings the store and reports reachability.
func (h *Health) Available(ctx context.Context) bool {
	if h == nil || h.db == nil {
		return false
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return sqlDB.PingContext(pingCtx) == nil
}

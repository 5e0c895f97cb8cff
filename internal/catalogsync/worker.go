package catalogsync

import (
	"context"
	"log"
	"time"

	"zonegate/internal/store"
)

// RunWorker polls the remote catalog until the context is canceled. The first
// check happens one minute after startup so boot stays fast.
func (m *Manager) RunWorker(ctx context.Context, st *store.Store) {
	if !m.cfg.CatalogSyncEnabled {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.shouldRefresh(ctx, st) {
				continue
			}
			if err := m.refreshLatest(ctx, st); err != nil {
				log.Printf("catalog sync: %v", err)
			}
		}
	}
}

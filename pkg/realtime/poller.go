package realtime

import (
	"context"
	"time"

	"github.com/mkustermann/pub-dartlang-dart/pkg/log"
	"github.com/mkustermann/pub-dartlang-dart/pkg/models"
)

// Poller watches the backend for newly published versions and broadcasts
// them to the hub. It keeps a high-water mark on publication time, so a
// version is announced at most once per process lifetime.
type Poller struct {
	backend  models.Backend
	hub      *Hub
	interval time.Duration
	logger   *log.Logger

	lastSeen time.Time
}

// NewPoller creates a poller over the given backend and hub.
func NewPoller(backend models.Backend, hub *Hub, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		backend:  backend,
		hub:      hub,
		interval: interval,
		logger:   log.ForComponent("feed"),
		lastSeen: time.Now(),
	}
}

// Run polls until the context is cancelled. Fetch failures are logged and
// retried on the next tick; an orphaned poll cannot corrupt shared state.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	recent, err := p.backend.LatestPackageVersions(ctx, 0, 50, true)
	if err != nil {
		p.logger.Warnf("polling latest versions: %v", err)
		return
	}

	// Results are newest first; walk backwards so events fire in
	// publication order.
	newest := p.lastSeen
	for i := len(recent) - 1; i >= 0; i-- {
		v := recent[i]
		if !v.CreatedAt.After(p.lastSeen) {
			continue
		}
		p.hub.Broadcast(VersionEvent{
			Package:   v.PackageName,
			Version:   v.Version,
			CreatedAt: v.CreatedAt,
		})
		if v.CreatedAt.After(newest) {
			newest = v.CreatedAt
		}
	}
	p.lastSeen = newest
}

package world

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/chunkgen/internal/selection"
)

// SimulatedHost stands in for the environment that actually produces a
// cell's content. Each call costs a fixed latency and is counted per
// region.
type SimulatedHost struct {
	catalog *Catalog
	latency time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	generated map[string]int64
}

// NewSimulatedHost creates a host serving the regions of catalog.
func NewSimulatedHost(catalog *Catalog, latency time.Duration, logger *slog.Logger) *SimulatedHost {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulatedHost{
		catalog:   catalog,
		latency:   latency,
		logger:    logger.With("component", "simulated_host"),
		generated: make(map[string]int64),
	}
}

// Generate produces the content of one cell. It fails for regions the
// catalog does not know.
func (h *SimulatedHost) Generate(ctx context.Context, region string, cell selection.Coordinate) error {
	if _, err := h.catalog.Resolve(region); err != nil {
		return err
	}

	if h.latency > 0 {
		timer := time.NewTimer(h.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("generating %s in %s: %w", cell, region, ctx.Err())
		case <-timer.C:
		}
	}

	h.mu.Lock()
	h.generated[region]++
	h.mu.Unlock()

	h.logger.Debug("cell generated", "region", region, "cell", cell.String())
	return nil
}

// Generated returns the number of cells generated for region.
func (h *SimulatedHost) Generated(region string) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generated[region]
}

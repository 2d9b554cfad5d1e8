package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/vmunix/arrfresh/internal/coalesce"
	"github.com/vmunix/arrfresh/internal/config"
	"github.com/vmunix/arrfresh/internal/events"
	"github.com/vmunix/arrfresh/internal/mediaserver"
	"github.com/vmunix/arrfresh/internal/registry"
)

// ServiceResolver yields the active media-server services for a set of
// configured names.
type ServiceResolver interface {
	Resolve(ctx context.Context, names []string) map[string]registry.ServiceInfo
}

// RefreshHandler reacts to transfer-complete events by refreshing the
// library view of every configured, reachable media server.
//
// Each notification is handled on its own goroutine; the delay window
// suspends only that goroutine. This concurrency is what makes the
// lock-file coalescing useful: overlapping notifications for the same
// path collapse into the one invocation that owns the lock. Once an
// invocation commits to waiting there is no cancellation.
//
// The handler's configuration is an immutable value fixed at
// construction; reconfiguration means building a new handler.
type RefreshHandler struct {
	*BaseHandler
	cfg      config.RefreshConfig
	resolver ServiceResolver
	guard    *coalesce.Guard
}

// NewRefreshHandler creates a refresh handler.
func NewRefreshHandler(bus *events.Bus, cfg config.RefreshConfig, resolver ServiceResolver, guard *coalesce.Guard, logger *slog.Logger) *RefreshHandler {
	return &RefreshHandler{
		BaseHandler: NewBaseHandler(bus, logger),
		cfg:         cfg,
		resolver:    resolver,
		guard:       guard,
	}
}

// Name returns the handler name.
func (h *RefreshHandler) Name() string {
	return "refresh"
}

// Start begins processing events.
func (h *RefreshHandler) Start(ctx context.Context) error {
	completed := h.Bus().Subscribe(events.EventTransferCompleted, 100)

	for {
		select {
		case e := <-completed:
			if e == nil {
				return nil // Channel closed
			}
			// Process in goroutine to not block other events
			go h.handleTransferCompleted(ctx, e.(*events.TransferCompleted))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *RefreshHandler) handleTransferCompleted(ctx context.Context, e *events.TransferCompleted) {
	if e == nil {
		return
	}
	if !h.cfg.Enabled {
		h.publishSkipped(ctx, e, events.SkipDisabled)
		return
	}
	if e.TargetPath == "" {
		h.publishSkipped(ctx, e, events.SkipNoTarget)
		return
	}

	if len(h.resolver.Resolve(ctx, h.cfg.MediaServers)) == 0 {
		h.publishSkipped(ctx, e, events.SkipNoServices)
		return
	}

	if delay := h.cfg.Delay.Duration(); delay > 0 {
		if !h.waitTurn(e, delay) {
			h.publishSkipped(ctx, e, events.SkipPendingLock)
			return
		}
	}

	item := mediaserver.RefreshItem{
		Title:      e.Media.Title,
		Year:       e.Media.Year,
		Type:       e.Media.Type,
		Category:   e.Media.Category,
		TargetPath: e.TargetPath,
	}

	// Services are resolved again after the delay; connectivity may have
	// changed while we waited.
	var dispatched []string
	for name, svc := range h.resolver.Resolve(ctx, h.cfg.MediaServers) {
		var err error
		switch svc.Capability {
		case mediaserver.CapabilityItems:
			err = svc.Client.(mediaserver.ItemRefresher).RefreshItems(ctx, []mediaserver.RefreshItem{item})
		case mediaserver.CapabilityLibrary:
			// No per-item API on this backend; refresh everything.
			err = svc.Client.(mediaserver.LibraryRefresher).RefreshLibrary(ctx)
		default:
			h.Logger().Warn("media server does not support refresh", "server", name)
			continue
		}

		if err != nil {
			// Isolated per server; the rest are still dispatched to.
			h.Logger().Error("refresh failed", "server", name, "path", e.TargetPath, "error", err)
			if err := h.Bus().Publish(ctx, &events.RefreshFailed{
				BaseEvent:  events.NewBaseEvent(events.EventRefreshFailed, events.EntityServer, name),
				TargetPath: e.TargetPath,
				Server:     name,
				Reason:     err.Error(),
			}); err != nil {
				h.Logger().Error("failed to publish RefreshFailed event", "error", err)
			}
			continue
		}

		h.Logger().Info("refresh dispatched", "server", name, "capability", svc.Capability.String(), "path", e.TargetPath)
		dispatched = append(dispatched, name)
	}

	if err := h.Bus().Publish(ctx, &events.RefreshCompleted{
		BaseEvent:  events.NewBaseEvent(events.EventRefreshCompleted, events.EntityTransfer, e.EntityID()),
		TargetPath: e.TargetPath,
		Servers:    dispatched,
	}); err != nil {
		h.Logger().Error("failed to publish RefreshCompleted event", "error", err)
	}
}

// waitTurn applies delay coalescing for the event's target path. It
// returns false when a still-pending lock means an earlier invocation
// already owns the schedule; otherwise it arms the lock and sleeps
// through the delay window.
func (h *RefreshHandler) waitTurn(e *events.TransferCompleted, delay time.Duration) bool {
	runAt, pending, err := h.guard.Pending(e.TargetPath)
	if err != nil {
		// Fail-open: a broken lock must never block a legitimate refresh.
		h.Logger().Warn("lock check failed, refresh continues", "path", e.TargetPath, "error", err)
	}
	if pending {
		h.Logger().Info("refresh already scheduled, dropping this request",
			"path", e.TargetPath, "run_at", runAt.Format(time.RFC3339))
		return false
	}

	runTime := time.Now().Add(delay)
	if err := h.guard.Arm(e.TargetPath, runTime); err != nil {
		h.Logger().Warn("lock write failed, refresh continues", "path", e.TargetPath, "error", err)
	} else {
		h.Logger().Info("refresh scheduled", "path", e.TargetPath, "run_at", runTime.Format(time.RFC3339))
	}

	// Suspends this goroutine only; other events keep flowing.
	time.Sleep(delay)
	return true
}

func (h *RefreshHandler) publishSkipped(ctx context.Context, e *events.TransferCompleted, reason string) {
	if err := h.Bus().Publish(ctx, &events.RefreshSkipped{
		BaseEvent:  events.NewBaseEvent(events.EventRefreshSkipped, events.EntityTransfer, e.EntityID()),
		TargetPath: e.TargetPath,
		Reason:     reason,
	}); err != nil {
		h.Logger().Error("failed to publish RefreshSkipped event", "error", err)
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SyncFunc performs one full synchronization pass.
type SyncFunc func(ctx context.Context) error

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often a full sync runs (default: 5m)
	PollInterval time.Duration

	// MaxRetries is how many times a failed pass is retried before waiting
	// for the next tick (default: 3)
	MaxRetries int

	// RetryDelay is the pause between retries (default: 10s)
	RetryDelay time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 5 * time.Minute,
		MaxRetries:   3,
		RetryDelay:   10 * time.Second,
	}
}

// SyncProcessor runs a sync pass periodically. The worker uses it when no
// event bus is configured.
type SyncProcessor struct {
	sync   SyncFunc
	config SyncProcessorConfig
	logger *slog.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(fn SyncFunc, config SyncProcessorConfig, logger *slog.Logger) *SyncProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncProcessor{
		sync:   fn,
		config: config,
		logger: logger.With("component", "worker"),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	if p.sync == nil || p.config.PollInterval <= 0 {
		p.mu.Unlock()
		return fmt.Errorf("sync processor needs a sync function and a positive poll interval")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"max_retries", p.config.MaxRetries)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on startup
	p.runOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

// runOnce runs one pass, retrying failures up to MaxRetries times.
func (p *SyncProcessor) runOnce(ctx context.Context) {
	for attempt := 0; ; attempt++ {
		err := p.sync(ctx)
		if err == nil {
			return
		}
		if attempt >= p.config.MaxRetries {
			p.logger.ErrorContext(ctx, "Sync failed, waiting for next poll",
				"attempts", attempt+1,
				"error", err)
			return
		}
		p.logger.WarnContext(ctx, "Sync failed, retrying",
			"attempt", attempt+1,
			"error", err)

		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(p.config.RetryDelay):
		}
	}
}

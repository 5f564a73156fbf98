// Package gracefulstop implements the CEEngine's between-iteration stop
// signal: SIGINT/SIGTERM or a sentinel stop file. The engine itself has
// no cancel protocol mid-iteration — it always drains every submitted
// job — so this controller's job is only to flip a flag the driver polls
// between iterations.
package gracefulstop

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Controller watches for an operator-requested stop.
type Controller struct {
	stopFile       string
	stopCh         chan struct{}
	stopped        bool
	mutex          sync.RWMutex
	pollInterval   time.Duration
	signalHandlers bool
}

// Config configures a Controller.
type Config struct {
	// StopFile is the path polled for existence as a stop request.
	StopFile string

	// PollInterval between stop-file checks.
	PollInterval time.Duration

	// EnableSignalHandlers installs SIGINT/SIGTERM handling.
	EnableSignalHandlers bool
}

// New creates a Controller.
func New(cfg Config) *Controller {
	if cfg.StopFile == "" {
		cfg.StopFile = "/tmp/ceflags-emergency-stop"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 1 * time.Second
	}

	return &Controller{
		stopFile:       cfg.StopFile,
		stopCh:         make(chan struct{}),
		pollInterval:   cfg.PollInterval,
		signalHandlers: cfg.EnableSignalHandlers,
	}
}

// Start begins monitoring for stop conditions in the background.
func (c *Controller) Start(ctx context.Context) {
	go c.watchStopFile(ctx)
	if c.signalHandlers {
		go c.watchSignals(ctx)
	}
}

func (c *Controller) watchStopFile(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.checkStopFile() {
				log.Warn().Str("path", c.stopFile).Msg("stop file detected")
				c.trigger("stop file detected")
				return
			}
		}
	}
}

func (c *Controller) watchSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		signal.Stop(sigCh)
	case sig := <-sigCh:
		log.Warn().Str("signal", sig.String()).Msg("stop signal received")
		c.trigger("signal: " + sig.String())
		signal.Stop(sigCh)
	}
}

func (c *Controller) checkStopFile() bool {
	_, err := os.Stat(c.stopFile)
	return err == nil
}

func (c *Controller) trigger(reason string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
	log.Warn().Str("reason", reason).Msg("graceful stop triggered")
}

// Stop manually triggers a stop.
func (c *Controller) Stop(reason string) {
	c.trigger(reason)
}

// ShouldStop reports whether a stop has been requested. Bind this
// directly to ceengine.Options.ShouldStop.
func (c *Controller) ShouldStop() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stopped
}

// StopChannel returns a channel that closes when a stop is triggered.
func (c *Controller) StopChannel() <-chan struct{} {
	return c.stopCh
}

// StopFilePath returns the path being polled for a stop request.
func (c *Controller) StopFilePath() string {
	return c.stopFile
}

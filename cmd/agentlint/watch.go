package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/agentlint/pkg/agent"
	"github.com/jingkaihe/agentlint/pkg/logger"
	"github.com/jingkaihe/agentlint/pkg/presenter"
	"github.com/jingkaihe/agentlint/pkg/validate"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	Dirs         []string
	Verbosity    string
	DebounceTime int
}

// NewWatchConfig creates a new WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		Dirs:         []string{},
		Verbosity:    "normal",
		DebounceTime: 500,
	}
}

// Validate validates the WatchConfig and returns an error if invalid
func (c *WatchConfig) Validate() error {
	validVerbosityLevels := []string{"quiet", "normal", "verbose"}
	for _, level := range validVerbosityLevels {
		if c.Verbosity == level {
			goto verbosityValid
		}
	}
	return errors.New(fmt.Sprintf("invalid verbosity level: %s, must be one of: %s", c.Verbosity, strings.Join(validVerbosityLevels, ", ")))

verbosityValid:
	if c.DebounceTime < 0 {
		return errors.New(fmt.Sprintf("debounce time cannot be negative: %d", c.DebounceTime))
	}

	return nil
}

// FileEvent represents a file system event with additional metadata
type FileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

var watchCmd = &cobra.Command{
	Use:   "watch [directory]...",
	Short: "Re-validate agent definitions as they change",
	Long: `Continuously monitor agent directories and re-run validation
whenever an agent definition file is written.

By default the standard discovery directories are watched. Pass
directories as arguments to watch those instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Create a cancellable context that listens for signals
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		config := getWatchConfigFromFlags(cmd)
		config.Dirs = args

		// Configure presenter based on verbosity
		presenter.SetQuiet(config.Verbosity == "quiet")

		// Set up signal handling
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			presenter.Warning("\nCancellation requested, shutting down...")
			cancel()
		}()

		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		runWatchMode(ctx, config)
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().StringP("verbosity", "v", defaults.Verbosity, "Verbosity level (quiet, normal, verbose)")
	watchCmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for file change events")
}

// getWatchConfigFromFlags extracts watch configuration from command flags
func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	config := NewWatchConfig()

	if verbosity, err := cmd.Flags().GetString("verbosity"); err == nil {
		config.Verbosity = verbosity
	}
	if debounceTime, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounceTime
	}

	return config
}

// watchDirs resolves the directories to watch, dropping ones that do not
// exist. Agent directories are flat, so watching is non-recursive.
func watchDirs(ctx context.Context, config *WatchConfig) ([]string, error) {
	dirs := config.Dirs
	if len(dirs) == 0 {
		discovery, err := agent.NewDiscovery()
		if err != nil {
			return nil, err
		}
		dirs = discovery.Dirs()
	}

	var existing []string
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			logger.G(ctx).WithField("dir", dir).Debug("directory not found, skipping")
			continue
		}
		existing = append(existing, dir)
	}
	if len(existing) == 0 {
		return nil, errors.Errorf("none of the agent directories exist: %v", dirs)
	}
	return existing, nil
}

func runWatchMode(ctx context.Context, config *WatchConfig) {
	dirs, err := watchDirs(ctx, config)
	if err != nil {
		presenter.Error(err, "Nothing to watch")
		os.Exit(1)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		presenter.Error(err, "Failed to create file watcher")
		logger.G(ctx).WithError(err).Fatal("Failed to create file watcher")
	}
	defer watcher.Close()

	// Setup debouncing mechanism
	events := make(chan FileEvent)
	debouncedEvents := make(chan FileEvent)

	// Start debouncer goroutine
	go debounceFileEvents(ctx, events, debouncedEvents, time.Duration(config.DebounceTime)*time.Millisecond)

	// Process events
	go func() {
		for {
			select {
			case event, ok := <-debouncedEvents:
				if !ok {
					return
				}
				if config.Verbosity != "quiet" {
					presenter.Info(fmt.Sprintf("Change detected: %s (%s)", event.Path, event.Op))
					logger.G(ctx).WithFields(map[string]interface{}{
						"file":      event.Path,
						"operation": event.Op.String(),
						"timestamp": event.Time,
					}).Debug("File change detected")
				}
				processAgentChange(ctx, event.Path)
			case <-ctx.Done():
				return
			}
		}
	}()

	// Watch for events
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				// Only agent definition files matter
				if !strings.HasSuffix(event.Name, agent.Extension) {
					continue
				}
				// Only process write and create events
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					events <- FileEvent{
						Path: event.Name,
						Op:   event.Op,
						Time: time.Now(),
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				presenter.Error(err, "File watcher error")
				logger.G(ctx).WithError(err).Error("Error watching files")
			case <-ctx.Done():
				return
			}
		}
	}()

	for _, dir := range dirs {
		logger.G(ctx).WithField("directory", dir).Debug("Adding directory to watcher")
		if err := watcher.Add(dir); err != nil {
			presenter.Error(err, fmt.Sprintf("Failed to watch %s", dir))
			logger.G(ctx).WithError(err).Fatal("Failed to watch directories")
		}
	}

	presenter.Info(fmt.Sprintf("Watching %s for agent changes... Press Ctrl+C to stop", strings.Join(dirs, ", ")))
	logger.G(ctx).WithField("directories_count", len(dirs)).Info("File watcher initialized")

	// Wait for context cancellation
	<-ctx.Done()
}

// Debounce file events to prevent processing multiple rapid changes to the same file
func debounceFileEvents(ctx context.Context, input <-chan FileEvent, output chan<- FileEvent, delay time.Duration) {
	var pending = make(map[string]*time.Timer)

	for {
		select {
		case event, ok := <-input:
			if !ok {
				// Clean up pending timers before returning
				for _, timer := range pending {
					timer.Stop()
				}
				return
			}
			// Cancel any pending timers for this file
			if timer, exists := pending[event.Path]; exists {
				timer.Stop()
				delete(pending, event.Path)
			}

			// Create a new timer
			eventCopy := event // Create a copy of the event to avoid race conditions
			pending[event.Path] = time.AfterFunc(delay, func() {
				select {
				case output <- eventCopy:
					delete(pending, eventCopy.Path)
				case <-ctx.Done():
					// Context cancelled, don't send the event
					delete(pending, eventCopy.Path)
				}
			})
		case <-ctx.Done():
			// Clean up pending timers before returning
			for _, timer := range pending {
				timer.Stop()
			}
			return
		}
	}
}

// processAgentChange re-validates a changed agent file and prints the report
func processAgentChange(ctx context.Context, path string) {
	// Deleted between the event and the debounce firing
	if _, err := os.Stat(path); err != nil {
		logger.G(ctx).WithField("file", path).Debug("file no longer exists, skipping")
		return
	}

	report := validate.New().CheckFile(ctx, path)

	presenter.Separator()
	if err := writeReportBlock(os.Stdout, report); err != nil {
		logger.G(ctx).WithError(err).WithField("file", path).Error("Failed to render report")
		return
	}
	if report.Valid() {
		presenter.Success(fmt.Sprintf("%s is valid", filepath.Base(path)))
	}
	presenter.Separator()
}

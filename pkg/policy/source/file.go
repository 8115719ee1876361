package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"arbiter-hq/arbiter/pkg/apl"
	"arbiter-hq/arbiter/pkg/apl/ast"
	"arbiter-hq/arbiter/pkg/schema"
)

// FileSource loads APL policies from disk.
// The path can be a single .apl file or a directory, in which case every
// .apl file in it is loaded.
type FileSource struct {
	path     string
	registry *schema.Registry
	logger   *slog.Logger

	// debounceInterval coalesces bursts of fsnotify events into one reload.
	debounceInterval time.Duration
}

// NewFileSource creates a file-based policy source. Schema binding uses the
// given registry's snapshot at load time.
func NewFileSource(path string, registry *schema.Registry, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:             path,
		registry:         registry,
		logger:           logger.With("component", "policy.source.file"),
		debounceInterval: 100 * time.Millisecond,
	}
}

// Load parses and validates all policies from the configured path.
// Files that fail to parse are skipped with a warning; a partially broken
// directory never prevents the valid policies from loading.
func (s *FileSource) Load(ctx context.Context) ([]*ast.Policy, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path %q: %w", s.path, err)
	}

	var files []string
	if info.IsDir() {
		err := filepath.Walk(s.path, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || filepath.Ext(path) != ".apl" {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk directory %q: %w", s.path, err)
		}
	} else {
		files = []string{s.path}
	}

	snap := s.registry.Snapshot()

	var policies []*ast.Policy
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %q: %w", file, err)
		}

		parsed, err := apl.ParseAndValidateAll(string(data), file, snap)
		if err != nil {
			s.logger.Warn("failed to load policy file, skipping",
				"path", file,
				"error", err,
			)
			continue
		}
		policies = append(policies, parsed...)
	}

	s.logger.Info("loaded policies from source",
		"path", s.path,
		"policy_count", len(policies),
	)
	return policies, nil
}

// Watch watches the path for changes and calls onReload with the freshly
// loaded policy set after each (debounced) change. It blocks until the
// context is cancelled.
func (s *FileSource) Watch(ctx context.Context, onReload func([]*ast.Policy) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.path); err != nil {
		return fmt.Errorf("failed to watch path %q: %w", s.path, err)
	}

	s.logger.Info("policy watcher started", "path", s.path)

	var debounce *time.Timer
	reloadCh := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("policy watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !s.relevant(event) {
				continue
			}
			s.logger.Debug("policy file event", "path", event.Name, "op", event.Op.String())

			// Coalesce editor save bursts into one reload.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(s.debounceInterval, func() {
				select {
				case reloadCh <- struct{}{}:
				default:
				}
			})

		case <-reloadCh:
			policies, err := s.Load(ctx)
			if err != nil {
				s.logger.Error("policy reload failed", "error", err)
				continue
			}
			if err := onReload(policies); err != nil {
				s.logger.Error("policy reload rejected", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// relevant filters events down to .apl file content changes.
func (s *FileSource) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return filepath.Ext(event.Name) == ".apl" || event.Name == s.path
}

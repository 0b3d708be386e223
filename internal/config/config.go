// Package config provides a configuration manager that loads and watches a
// YAML access configuration file.
//
// The file carries the analyst credentials the web service resolves bearer
// tokens against. It is reloaded on change so access can be granted or
// revoked without a restart.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Session identifies an authenticated analyst. It is threaded explicitly
// through request handling; there is no ambient session state.
type Session struct {
	User string `yaml:"user"`
	Role string `yaml:"role"`
}

// Analyst is one credential entry in the access configuration.
type Analyst struct {
	Token string `yaml:"token"`
	User  string `yaml:"user"`
	Role  string `yaml:"role"`
}

// Conf represents the configuration structure.
type Conf struct {
	Analysts []Analyst `yaml:"analysts"`
}

// Manager is a struct that manages the configuration.
type Manager struct {
	config     Conf
	byToken    map[string]Session
	lock       sync.RWMutex
	configPath string

	log *slog.Logger
}

type options struct {
	Logger *slog.Logger
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Options {
	return func(o *options) { o.Logger = log }
}

// New creates a new configuration manager with the specified path.
func New(path string, args ...Options) *Manager {
	opts := options{
		Logger: slog.Default(),
	}

	for _, opt := range args {
		opt(&opts)
	}

	return &Manager{
		configPath: path,
		log:        opts.Logger,
	}
}

// Load reads the configuration from the specified file and updates the internal state.
func (cm *Manager) Load() error {
	file, err := os.Open(cm.configPath)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer file.Close()

	var newConfig Conf
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&newConfig); err != nil {
		return fmt.Errorf("decoding config YAML: %w", err)
	}

	byToken := make(map[string]Session, len(newConfig.Analysts))
	for _, a := range newConfig.Analysts {
		if a.Token == "" {
			cm.log.Warn("Ignoring analyst entry without token", "user", a.User)
			continue
		}
		byToken[a.Token] = Session{User: a.User, Role: a.Role}
	}

	cm.lock.Lock()
	cm.config = newConfig
	cm.byToken = byToken
	cm.lock.Unlock()

	cm.log.Info("Access configuration loaded", "analysts", len(byToken))
	return nil
}

// Watch starts watching the configuration file for changes.
//
// It returns two channels: one for configuration changes which result in a successful load and another for unrecoverable watcher errors.
func (cm *Manager) Watch(ctx context.Context) (changes <-chan struct{}, errs <-chan error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	configDir, _ := filepath.Split(cm.configPath)
	if configDir == "" {
		configDir = "."
	}
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", configDir, err)
	}

	cm.log.Info("Watching access configuration directory", "dir", configDir)
	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	// Initial load of the configuration
	if err := cm.Load(); err != nil {
		cm.log.Warn("Error loading initial config", "err", err)
	}

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				cm.log.Info("Configuration watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if event.Name != cm.configPath {
					continue
				}

				cm.log.Debug("Access configuration file changed. Reloading...")
				if err := cm.Load(); err != nil {
					cm.log.Warn("Error reloading config", "err", err)
					continue
				}

				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				cm.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}

// Lookup resolves a bearer token to an analyst session.
func (cm *Manager) Lookup(token string) (Session, bool) {
	cm.lock.RLock()
	defer cm.lock.RUnlock()
	s, ok := cm.byToken[token]
	return s, ok
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader loads configuration from a YAML file, applies environment variable
// substitution, and supports reload (manual or via fsnotify).
type Loader struct {
	mu       sync.RWMutex
	cfg      *Config
	filePath string
	logger   *slog.Logger

	watcher   *fsnotify.Watcher
	watchDone chan struct{}
}

// NewLoader creates a Loader pre-populated with DefaultConfig.
func NewLoader() *Loader {
	return &Loader{
		cfg:    DefaultConfig(),
		logger: slog.Default().With("component", "config.Loader"),
	}
}

// Load reads, substitutes, and parses the YAML file at path, replacing the
// current config on success. The config is left untouched on error.
func (l *Loader) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	substituted := substituteEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(substituted), cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	l.mu.Lock()
	l.cfg = cfg
	l.filePath = path
	l.mu.Unlock()

	return nil
}

// Get returns the current config snapshot.
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// FilePath returns the path of the last successfully loaded file, or "" if
// Load has never succeeded.
func (l *Loader) FilePath() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filePath
}

// Reload re-reads the file previously passed to Load.
func (l *Loader) Reload() error {
	path := l.FilePath()
	if path == "" {
		return fmt.Errorf("config: Reload called before a successful Load")
	}
	return l.Load(path)
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR} and ${VAR:-default} references with the
// corresponding environment variable value, or the default, or "" if unset
// and no default is given.
func substituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name := groups[1]
		def := groups[3]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return def
	})
}

// GenerateDefault writes a default configuration file to path.
func GenerateDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write default config %s: %w", path, err)
	}
	return nil
}

// WatchFunc is invoked after the watched file changes and is successfully
// reloaded.
type WatchFunc func(cfg *Config)

// Watch watches the loaded file's parent directory for changes (catching
// editor rename-replace patterns) and calls onReload after each successful
// Reload.
func (l *Loader) Watch(onReload WatchFunc) error {
	path := l.FilePath()
	if path == "" {
		return fmt.Errorf("config: Watch called before a successful Load")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dir := dirOf(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.watchDone = make(chan struct{})
	done := l.watchDone
	l.mu.Unlock()

	go l.watchLoop(watcher, path, onReload, done)
	return nil
}

func (l *Loader) watchLoop(watcher *fsnotify.Watcher, path string, onReload WatchFunc, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := l.Reload(); err != nil {
				l.logger.Error("config reload failed", "path", path, "error", err)
				continue
			}
			if onReload != nil {
				onReload(l.Get())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error("config watcher error", "error", err)
		}
	}
}

// StopWatch stops a previously started Watch and waits for the goroutine to exit.
func (l *Loader) StopWatch() {
	l.mu.Lock()
	watcher := l.watcher
	done := l.watchDone
	l.watcher = nil
	l.watchDone = nil
	l.mu.Unlock()

	if watcher == nil {
		return
	}
	watcher.Close()
	if done != nil {
		<-done
	}
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

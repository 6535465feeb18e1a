// Package settings persists the user's transfer settings (download location,
// OS and language filters) in a JSON file and serves snapshots of them.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/datallboy/godepot/internal/domain"
	"github.com/datallboy/godepot/internal/infra/logger"
)

const (
	KeyDownloadLocation = "download_location"
	KeyOSList           = "os_list"
	KeyLanguages        = "languages"

	DefaultDownloadLocation = "./.downloads"
)

// ErrInvalidValue is returned by Update when a known key has the wrong shape.
var ErrInvalidValue = errors.New("invalid settings value")

// Store is the settings file. Snapshots are copies and safe to keep.
type Store struct {
	mu      sync.RWMutex
	v       *viper.Viper
	path    string
	current domain.Settings
	log     *logger.Logger
}

// Open loads the settings file at path, creating it with defaults when it
// does not exist. defaultDir overrides the default download location.
func Open(path, defaultDir string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if defaultDir == "" {
		defaultDir = DefaultDownloadLocation
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault(KeyDownloadLocation, defaultDir)
	v.SetDefault(KeyOSList, []string{"windows"})
	v.SetDefault(KeyLanguages, []string{"english"})

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create settings dir: %w", err)
		}
		if err := v.WriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("write default settings: %w", err)
		}
		log.Info("Created settings file %s with defaults", path)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	s := &Store{v: v, path: path, log: log}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Snapshot returns the current settings.
func (s *Store) Snapshot() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Update merges values into the file and reloads. Unknown keys are kept in
// the file untouched; known keys are validated first.
func (s *Store) Update(values map[string]any) error {
	clean := make(map[string]any, len(values))
	for k, val := range values {
		key := strings.ToLower(k)
		switch key {
		case KeyDownloadLocation:
			str, ok := val.(string)
			if !ok || strings.TrimSpace(str) == "" {
				return fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidValue, key)
			}
			clean[key] = str
		case KeyOSList, KeyLanguages:
			list, err := stringList(val)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
			}
			clean[key] = list
		default:
			clean[key] = val
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.v.MergeConfigMap(clean); err != nil {
		return fmt.Errorf("merge settings: %w", err)
	}
	if err := s.v.WriteConfig(); err != nil {
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}
	return s.reloadLocked()
}

// Watch reloads the settings whenever the file is changed on disk.
func (s *Store) Watch() {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		if err := s.reload(); err != nil {
			s.log.Warn("Settings change in %s ignored: %v", e.Name, err)
			return
		}
		s.log.Info("Settings reloaded from %s", e.Name)
	})
	s.v.WatchConfig()
}

func (s *Store) reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

func (s *Store) reloadLocked() error {
	dir := s.v.GetString(KeyDownloadLocation)
	if dir == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidValue, KeyDownloadLocation)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	s.current = domain.Settings{
		OSFilters:       s.v.GetStringSlice(KeyOSList),
		LanguageFilters: s.v.GetStringSlice(KeyLanguages),
		BaseDownloadDir: abs,
	}
	return nil
}

// AsMap renders a snapshot the way the settings file spells it.
func AsMap(st domain.Settings) map[string]any {
	return map[string]any{
		KeyDownloadLocation: st.BaseDownloadDir,
		KeyOSList:           st.OSFilters,
		KeyLanguages:        st.LanguageFilters,
	}
}

func stringList(val any) ([]string, error) {
	switch list := val.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %v is not a string", item)
			}
			out = append(out, str)
		}
		return out, nil
	case string:
		// "windows,linux" from the command line
		var out []string
		for _, part := range strings.Split(list, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", val)
	}
}

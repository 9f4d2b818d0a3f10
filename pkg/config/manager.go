package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Store is the policy persistence contract used by the scheduler's callers.
type Store interface {
	Get() Policy
	Set(Policy) error
}

// Manager owns the config file. Readers get copies; writes are validated, saved and
// then committed, last write wins.
type Manager struct {
	path string
	log  zerolog.Logger

	mu  sync.RWMutex
	cfg *Config
}

var _ Store = (*Manager)(nil)

// NewManager loads path (or defaults when it does not exist).
func NewManager(path string, log zerolog.Logger) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, log: log, cfg: cfg}, nil
}

func (m *Manager) Path() string { return m.path }

// Config returns a copy of the whole configuration.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := *m.cfg
	cp.Policy = m.cfg.Policy.WithDefaults()
	return cp
}

// Get returns a copy of the current policy.
func (m *Manager) Get() Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Policy.WithDefaults()
}

// Set validates p, persists it and makes it current.
func (m *Manager) Set(p Policy) error {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next := *m.cfg
	next.Policy = p
	if err := Save(m.path, &next); err != nil {
		return err
	}
	m.cfg = &next
	m.log.Info().Ints("wake_hours", p.WakeHours).Msg("policy saved")
	return nil
}

// Watch reloads the file when it changes on disk until ctx is done.
// Invalid edits are logged and ignored.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)
	if err := w.Add(dir); err != nil {
		return err
	}

	// Editors often emit several events per save.
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, m.reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) &&
				ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log.Warn().Err(err).Str("dir", dir).Msg("config watch error")
		}
	}
}

func (m *Manager) reload() {
	cfg, err := Load(m.path)
	if err != nil {
		m.log.Warn().Err(err).Str("path", m.path).Msg("config reload rejected")
		return
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	m.log.Info().Str("path", m.path).Msg("config reloaded")
}

package config

import (
	"sync"

	"github.com/Andrej220/go-utils/partition"
)

// Settings is the shared, mutable executor configuration. Administrators
// may change it at any time; a run picks up the values current when it
// starts and keeps them until it finishes.
type Settings struct {
	mu           sync.RWMutex
	exec         Executor
	metrics      partition.MetricsPolicy
	onBatchError func(error)
}

var _ partition.OptionsSource = (*Settings)(nil)

// NewSettings returns Settings initialised from e. Values are not
// validated here; an invalid value surfaces as partition.ErrInvalidConfig
// from the next run.
func NewSettings(e Executor) *Settings {
	return &Settings{exec: e}
}

var global = NewSettings(DefaultExecutor())

// Global returns the process-wide Settings.
func Global() *Settings { return global }

func (s *Settings) BatchSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exec.BatchSize
}

func (s *Settings) SetBatchSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exec.BatchSize = n
}

func (s *Settings) ThreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exec.ThreadCount
}

func (s *Settings) SetThreadCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exec.ThreadCount = n
}

// SetMetrics installs the metrics policy handed to every run.
func (s *Settings) SetMetrics(m partition.MetricsPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// SetOnBatchError installs the per-batch failure hook handed to every run.
func (s *Settings) SetOnBatchError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onBatchError = fn
}

// Apply replaces the executor section, as after reloading a config file.
func (s *Settings) Apply(e Executor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exec = e
}

// Reset restores DefaultExecutor and clears hooks.
func (s *Settings) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exec = DefaultExecutor()
	s.metrics = nil
	s.onBatchError = nil
}

// Snapshot returns a consistent copy of the current values.
func (s *Settings) Snapshot() partition.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o := s.exec.Options()
	if s.metrics != nil {
		o.Metrics = s.metrics
	}
	o.OnBatchError = s.onBatchError
	return o
}

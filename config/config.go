// Package config holds the file-backed configuration of the executor and
// its collaborators, and the process-wide mutable Settings the executor
// reads before every run.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Andrej220/go-utils/partition"
)

// File is the on-disk configuration.
type File struct {
	Executor Executor `yaml:"executor"`
	Retry    Retry    `yaml:"retry"`
	Redis    Redis    `yaml:"redis"`
	Metrics  Metrics  `yaml:"metrics"`
	Log      Log      `yaml:"log"`
}

// Executor configures partitioned runs.
type Executor struct {
	BatchSize   int    `yaml:"batch_size" validate:"min=1"`
	ThreadCount int    `yaml:"thread_count" validate:"min=1"`
	NamePrefix  string `yaml:"name_prefix"`
	PinWorkers  bool   `yaml:"pin_workers"`
}

// Retry configures per-batch retries in the expunge layer.
// Zero values mean "use expunge defaults".
type Retry struct {
	Attempts int           `yaml:"attempts" validate:"min=0"`
	Initial  time.Duration `yaml:"initial" validate:"min=0"`
	Max      time.Duration `yaml:"max" validate:"min=0"`
}

// Redis is the resource store connection.
type Redis struct {
	Addr      string `yaml:"addr" validate:"omitempty,hostname_port"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"min=0"`
	KeyPrefix string `yaml:"key_prefix"`
	PoolSize  int    `yaml:"pool_size" validate:"min=0"`
}

// Metrics configures Prometheus collectors.
type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// Log configures the command-line logger.
type Log struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
}

// DefaultExecutor mirrors partition.DefaultOptions.
func DefaultExecutor() Executor {
	return Executor{
		BatchSize:   partition.DefaultBatchSize,
		ThreadCount: runtime.NumCPU(),
		NamePrefix:  partition.DefaultNamePrefix,
	}
}

// Default returns a File with every section at its default.
func Default() File {
	return File{
		Executor: DefaultExecutor(),
		Metrics:  Metrics{Namespace: "fhir", Subsystem: "expunge"},
		Log:      Log{Level: "info", MaxSizeMB: 100, MaxBackups: 3},
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (f File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Load reads and parses the file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Options converts the executor section to partition options.
func (e Executor) Options() partition.Options {
	o := partition.Options{
		BatchSize:   e.BatchSize,
		ThreadCount: e.ThreadCount,
		NamePrefix:  e.NamePrefix,
		PinWorkers:  e.PinWorkers,
	}
	o.FillDefaults()
	return o
}

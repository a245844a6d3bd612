package flowforge

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/joblog"
	"github.com/flowforge-io/flowforge/internal/runner"
)

// ExecutorConfig holds the executor-wide defaults a flow scheduler applies
// to every runner it constructs.
type ExecutorConfig struct {
	// WorkingDir is where per-job log files are written.
	WorkingDir string `yaml:"working_dir"`

	JobLog JobLogConfig `yaml:"job_log"`

	// StatsTTLSeconds is the cache TTL of the executor stats snapshot.
	StatsTTLSeconds int `yaml:"stats_ttl_seconds"`
}

type JobLogConfig struct {
	MaxSizeMB   int    `yaml:"max_size_mb"`
	BackupCount int    `yaml:"backup_count"`
	Layout      string `yaml:"layout"`
}

func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		WorkingDir: ".",
		JobLog: JobLogConfig{
			MaxSizeMB:   joblog.DefaultMaxSizeMB,
			BackupCount: joblog.DefaultBackupCount,
			Layout:      joblog.DefaultLayout,
		},
		StatsTTLSeconds: 1,
	}
}

// LoadExecutorConfig reads a YAML config file over the defaults.
func LoadExecutorConfig(path string) (*ExecutorConfig, error) {
	config := DefaultExecutorConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *ExecutorConfig) Validate() error {
	if c.WorkingDir == "" {
		return fmt.Errorf("%w: working_dir must not be empty", domain.ErrInvalidConfig)
	}
	if c.JobLog.MaxSizeMB < 0 {
		return fmt.Errorf("%w: job_log.max_size_mb must not be negative", domain.ErrInvalidConfig)
	}
	if c.JobLog.BackupCount < 0 {
		return fmt.Errorf("%w: job_log.backup_count must not be negative", domain.ErrInvalidConfig)
	}
	if c.StatsTTLSeconds < 0 {
		return fmt.Errorf("%w: stats_ttl_seconds must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}

// JobLogOptions converts the config into per-job log sink options.
func (c *ExecutorConfig) JobLogOptions() JobLogOptions {
	return joblog.Options{
		MaxSizeMB:   c.JobLog.MaxSizeMB,
		BackupCount: c.JobLog.BackupCount,
		Layout:      c.JobLog.Layout,
	}
}

// StatsTTL returns the configured snapshot TTL.
func (c *ExecutorConfig) StatsTTL() time.Duration {
	return time.Duration(c.StatsTTLSeconds) * time.Second
}

// RunnerOptions builds the base runner options for this executor; the
// caller fills in the collaborators.
func (c *ExecutorConfig) RunnerOptions() RunnerOptions {
	return runner.Options{
		WorkingDir: c.WorkingDir,
		JobLog:     c.JobLogOptions(),
	}
}

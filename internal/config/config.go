// Package config provides the configuration schema, loader, and polling
// watcher for the stenod daemon.
package config

import "time"

// Config is the root configuration structure for stenod.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Recognizer  RecognizerConfig  `yaml:"recognizer"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
}

// ServerConfig holds the daemon's process-level settings: where it listens,
// where it persists state, and how verbosely it logs.
type ServerConfig struct {
	// SocketPath is the Unix-domain socket path the socket server (C9)
	// listens on. Required: there is no default, and an empty value makes
	// daemon startup fail.
	SocketPath string `yaml:"socket_path"`

	// DBPath is the SQLite database file backing the transcript repository
	// (C1). Required: there is no default, and an empty value makes daemon
	// startup fail unless a repository is injected.
	DBPath string `yaml:"db_path"`

	// PIDFile is the path stenod writes its process ID to at startup and
	// removes at clean shutdown; the socket server consults it to detect a
	// stale socket left by a dead process (spec.md §6, §8 scenario S6).
	PIDFile string `yaml:"pid_file"`

	// MetricsAddr is the loopback address the /metrics, /healthz, and
	// /readyz HTTP endpoints listen on. Empty disables the HTTP server
	// entirely.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn",
	// "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel is the named set of valid slog verbosity levels accepted in
// configuration.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the named [LogLevel] constants.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// RecognizerConfig configures the speech recognizer collaborator (C4) at
// the level the daemon itself is responsible for: a default locale, since
// the concrete recognizer backend and its credentials are deliberately out
// of scope (spec.md §1).
type RecognizerConfig struct {
	// DefaultLocale is used for the "start" command when no locale is
	// given. Default: "en-US".
	DefaultLocale string `yaml:"default_locale"`
}

// CoordinatorConfig configures the rolling summary / topic coordinator
// (C5)'s trigger policy. Zero values fall back to [coordinator.New]'s own
// defaults; this struct only overrides them.
type CoordinatorConfig struct {
	// TriggerCount fires a coordinator run once this many uncovered
	// segments exist, regardless of elapsed time.
	TriggerCount int `yaml:"trigger_count"`

	// TimeThreshold fires a run once at least MinSegmentsForTimeTrigger
	// segments are uncovered and this long has elapsed since the last run.
	TimeThreshold time.Duration `yaml:"time_threshold"`

	// MinSegmentsForTimeTrigger is the minimum uncovered segment count for
	// TimeThreshold to apply.
	MinSegmentsForTimeTrigger int `yaml:"min_segments_for_time_trigger"`

	// LLMTimeout bounds each individual summarize/meeting-notes/topic call
	// made to the summarizer collaborator (C2).
	LLMTimeout time.Duration `yaml:"llm_timeout"`
}

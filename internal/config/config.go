package config

import "log/slog"

// Common holds settings shared by both functions.
type Common struct {
	LogLevel       slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	PipelineTable  string     `env:"PIPELINE_TABLE"`
	NotifyTopicARN string     `env:"NOTIFY_TOPIC_ARN"`
}

// LedgerEnabled reports whether export/load hand-off goes through the pipeline table.
func (c Common) LedgerEnabled() bool {
	return c.PipelineTable != ""
}

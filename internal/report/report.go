// Package report defines the serializable completion report returned
// by every run: per-feature terminal state, audit trail, artifacts, and
// aggregate metrics.
package report

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"featureforge/internal/feature"
)

// FeatureReport carries one feature's final state.
type FeatureReport struct {
	ID            string                `yaml:"id" json:"id"`
	Title         string                `yaml:"title" json:"title"`
	TerminalState feature.Phase         `yaml:"terminal_state" json:"terminal_state"`
	History       []feature.PhaseRecord `yaml:"history" json:"history"`
	Artifacts     map[string]string     `yaml:"artifacts" json:"artifacts"`
	Metrics       feature.Metrics       `yaml:"metrics" json:"metrics"`
}

// AggregateMetrics summarizes the whole run.
type AggregateMetrics struct {
	TotalDuration time.Duration `yaml:"total_duration" json:"total_duration"`
	CacheHitRate  float64       `yaml:"cache_hit_rate" json:"cache_hit_rate"`
	RetriesTotal  int           `yaml:"retries_total" json:"retries_total"`
	Green         int           `yaml:"green" json:"green"`
	Failed        int           `yaml:"failed" json:"failed"`
	Blocked       int           `yaml:"blocked" json:"blocked"`
	Cancelled     int           `yaml:"cancelled" json:"cancelled"`
}

// CompletionReport is the run's full result. It always reflects the
// true terminal state of every feature, including partial outcomes.
type CompletionReport struct {
	RunID     string           `yaml:"run_id" json:"run_id"`
	StartedAt time.Time        `yaml:"started_at" json:"started_at"`
	Features  []FeatureReport  `yaml:"features" json:"features"`
	Aggregate AggregateMetrics `yaml:"aggregate_metrics" json:"aggregate_metrics"`
}

// Build assembles a report from terminal features.
func Build(runID string, startedAt time.Time, features []*feature.Feature, cacheHitRate float64) *CompletionReport {
	r := &CompletionReport{
		RunID:     runID,
		StartedAt: startedAt.UTC(),
		Features:  make([]FeatureReport, 0, len(features)),
	}

	for _, f := range features {
		r.Features = append(r.Features, FeatureReport{
			ID:            f.ID,
			Title:         f.Title,
			TerminalState: f.Phase,
			History:       f.History,
			Artifacts:     f.Artifacts,
			Metrics:       f.Metrics,
		})
		r.Aggregate.RetriesTotal += f.Metrics.Retries

		switch f.Phase {
		case feature.PhaseGreen:
			r.Aggregate.Green++
		case feature.PhaseFailed:
			r.Aggregate.Failed++
		case feature.PhaseBlocked:
			r.Aggregate.Blocked++
		case feature.PhaseCancelled:
			r.Aggregate.Cancelled++
		}
	}

	r.Aggregate.TotalDuration = time.Since(startedAt)
	r.Aggregate.CacheHitRate = cacheHitRate
	return r
}

// Feature returns the report entry for an ID, or nil.
func (r *CompletionReport) Feature(id string) *FeatureReport {
	for i := range r.Features {
		if r.Features[i].ID == id {
			return &r.Features[i]
		}
	}
	return nil
}

// WriteYAML renders the report as YAML.
func (r *CompletionReport) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// Summary renders a one-line human summary.
func (r *CompletionReport) Summary() string {
	return fmt.Sprintf("%d green, %d failed, %d blocked, %d cancelled in %s (cache hit rate %.0f%%)",
		r.Aggregate.Green, r.Aggregate.Failed, r.Aggregate.Blocked, r.Aggregate.Cancelled,
		r.Aggregate.TotalDuration.Round(time.Millisecond), r.Aggregate.CacheHitRate*100)
}

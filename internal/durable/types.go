// Package durable runs the feature pipeline as a Temporal workflow:
// dependency ordering happens deterministically inside the workflow,
// each feature runs as an activity, and group barriers map onto
// activity future joins. Useful when a run must survive process
// restarts; the in-process coordinator remains the default path.
package durable

import (
	"featureforge/internal/config"
	"featureforge/internal/feature"
)

// TaskQueue is the Temporal task queue for pipeline workers.
const TaskQueue = "featureforge-pipeline"

// FeatureSpec is the serializable description of one feature. Specs
// are fixed at workflow start; the feature set never mutates mid-run.
type FeatureSpec struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

// WorkflowInput starts a pipeline run.
type WorkflowInput struct {
	Features []FeatureSpec `json:"features"`
	Config   config.Config `json:"config"`
}

// FeatureOutcome is one feature's terminal result as recorded by the
// workflow.
type FeatureOutcome struct {
	ID            string            `json:"id"`
	TerminalState feature.Phase     `json:"terminal_state"`
	Artifacts     map[string]string `json:"artifacts,omitempty"`
	Retries       int               `json:"retries"`
}

// WorkflowResult aggregates a completed run.
type WorkflowResult struct {
	Outcomes  []FeatureOutcome `json:"outcomes"`
	Green     int              `json:"green"`
	Failed    int              `json:"failed"`
	Blocked   int              `json:"blocked"`
	Cancelled int              `json:"cancelled"`
}

// FeatureInput is the activity request for one feature.
type FeatureInput struct {
	Spec     FeatureSpec       `json:"spec"`
	Upstream map[string]string `json:"upstream,omitempty"`
}

// FeatureOutput is the activity response.
type FeatureOutput struct {
	Outcome FeatureOutcome `json:"outcome"`
}

// toFeatures builds pipeline features from specs.
func toFeatures(specs []FeatureSpec) []*feature.Feature {
	features := make([]*feature.Feature, 0, len(specs))
	for _, s := range specs {
		features = append(features, feature.New(s.ID, s.Title, s.Description, s.DependsOn))
	}
	return features
}

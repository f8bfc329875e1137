package durable

import (
	"errors"
	"fmt"
	"sync"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// WorkerOptions configures a pipeline worker.
type WorkerOptions struct {
	// HostPort of the Temporal frontend. Empty uses the SDK default.
	HostPort string
	// Namespace is the Temporal namespace (default "default").
	Namespace string
	// MaxConcurrent bounds concurrent activity executions (default 10).
	MaxConcurrent int
}

// Worker hosts the pipeline workflow and its activities.
type Worker struct {
	client  client.Client
	worker  worker.Worker
	started bool
	mu      sync.Mutex
}

// NewWorker dials Temporal and registers the pipeline workflow plus
// the given activities.
func NewWorker(opts WorkerOptions, activities *Activities) (*Worker, error) {
	if activities == nil {
		return nil, errors.New("activities are required")
	}
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 10
	}

	c, err := client.Dial(client.Options{
		HostPort:  opts.HostPort,
		Namespace: opts.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}

	w := worker.New(c, TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: opts.MaxConcurrent,
	})
	w.RegisterWorkflow(PipelineWorkflow)
	w.RegisterActivity(activities.RunFeature)

	return &Worker{client: c, worker: w}, nil
}

// Start begins polling. Idempotent.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if err := w.worker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	w.started = true
	return nil
}

// Stop shuts the worker down gracefully and closes the client.
// Idempotent.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		w.worker.Stop()
		w.started = false
	}
	if w.client != nil {
		w.client.Close()
		w.client = nil
	}
}

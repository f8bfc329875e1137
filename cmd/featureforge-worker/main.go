// Copyright (c) 2025 FeatureForge Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"featureforge/internal/backend"
	"featureforge/internal/cache"
	"featureforge/internal/config"
	"featureforge/internal/durable"
	"featureforge/internal/orchestrator"
	"featureforge/internal/sandbox"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config (defaults apply when empty)")
		hostPort    = flag.String("temporal", "", "Temporal frontend host:port (SDK default when empty)")
		namespace   = flag.String("namespace", "default", "Temporal namespace")
		opencodeURL = flag.String("opencode-url", "http://localhost:4096", "OpenCode server base URL")
		model       = flag.String("model", "", "Model identifier passed to the backend")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		cfg = loaded
	}

	gen := backend.New(backend.Options{BaseURL: *opencodeURL, Model: *model})
	cacheMgr := cache.NewManager(cfg.CacheSizeBudgetBytes, cfg.CacheTTL())
	runner := orchestrator.New(gen, sandbox.NewLocalSandbox(), cacheMgr, orchestrator.Options{
		MinCoverage:  cfg.MinCoverage,
		CallTimeout:  cfg.CallTimeout(),
		MaxRetries:   cfg.MaxRetries,
		EnableReview: cfg.EnableReview,
	}, &stdLogger{})

	w, err := durable.NewWorker(durable.WorkerOptions{
		HostPort:      *hostPort,
		Namespace:     *namespace,
		MaxConcurrent: cfg.ConcurrencyLimit,
	}, durable.NewActivities(runner))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	if err := w.Start(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("🚀 Pipeline worker polling task queue %q", durable.TaskQueue)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down worker")
	w.Stop()
}

type stdLogger struct{}

func (l *stdLogger) Infof(format string, args ...interface{})  { log.Printf("INFO  "+format, args...) }
func (l *stdLogger) Warnf(format string, args ...interface{})  { log.Printf("WARN  "+format, args...) }
func (l *stdLogger) Errorf(format string, args ...interface{}) { log.Printf("ERROR "+format, args...) }
func (l *stdLogger) Debugf(format string, args ...interface{}) { log.Printf("DEBUG "+format, args...) }

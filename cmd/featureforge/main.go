// Copyright (c) 2025 FeatureForge Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"featureforge/internal/backend"
	"featureforge/internal/cache"
	"featureforge/internal/collab"
	"featureforge/internal/config"
	"featureforge/internal/coordinator"
	"featureforge/internal/feature"
	"featureforge/internal/orchestrator"
	"featureforge/internal/planner"
	"featureforge/internal/sandbox"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config (defaults apply when empty)")
		planFile    = flag.String("plan", "", "Read features from a free-text plan file")
		manifest    = flag.String("manifest", "", "Read features from a YAML manifest")
		outFile     = flag.String("out", "", "Write the completion report to a file (default stdout)")
		opencodeURL = flag.String("opencode-url", "http://localhost:4096", "OpenCode server base URL")
		model       = flag.String("model", "", "Model identifier passed to the backend")
		sandboxKind = flag.String("sandbox", "local", "Execution sandbox: local or docker")
		image       = flag.String("image", "", "Container image for the docker sandbox")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	features, err := loadFeatures(*planFile, *manifest)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("📋 Loaded %d features (template: %s)", len(features), cfg.Template)

	sb, cleanup, err := buildSandbox(*sandboxKind, *image)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer cleanup()

	gen := backend.New(backend.Options{BaseURL: *opencodeURL, Model: *model})

	cacheMgr := cache.NewManager(cfg.CacheSizeBudgetBytes, cfg.CacheTTL())
	logger := &stdLogger{}
	runner := orchestrator.New(gen, sb, cacheMgr, orchestrator.Options{
		MinCoverage:  cfg.MinCoverage,
		CallTimeout:  cfg.CallTimeout(),
		MaxRetries:   cfg.MaxRetries,
		EnableReview: cfg.EnableReview,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord := coordinator.New(runner, cacheMgr, cfg, logger)
	rep, err := coord.Run(ctx, features)
	if err != nil {
		log.Fatalf("❌ Run aborted: %v", err)
	}

	log.Printf("✅ %s", rep.Summary())

	out := os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			log.Fatalf("❌ Failed to create report file: %v", err)
		}
		defer f.Close()
		out = f
	}
	if err := rep.WriteYAML(out); err != nil {
		log.Fatalf("❌ Failed to write report: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func loadFeatures(planFile, manifest string) ([]*feature.Feature, error) {
	switch {
	case planFile != "" && manifest != "":
		return nil, fmt.Errorf("use either -plan or -manifest, not both")
	case planFile != "":
		data, err := os.ReadFile(planFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read plan: %w", err)
		}
		return planner.NewParser().Parse(string(data))
	case manifest != "":
		return feature.LoadManifest(manifest)
	default:
		return nil, fmt.Errorf("one of -plan or -manifest is required")
	}
}

func buildSandbox(kind, image string) (collab.ExecutionSandbox, func(), error) {
	switch kind {
	case "local":
		return sandbox.NewLocalSandbox(), func() {}, nil
	case "docker":
		ds, err := sandbox.NewDockerSandbox(image)
		if err != nil {
			return nil, nil, err
		}
		return ds, func() { _ = ds.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown sandbox %q", kind)
	}
}

// stdLogger adapts the standard logger to the orchestrator interface.
type stdLogger struct{}

func (l *stdLogger) Infof(format string, args ...interface{})  { log.Printf("INFO  "+format, args...) }
func (l *stdLogger) Warnf(format string, args ...interface{})  { log.Printf("WARN  "+format, args...) }
func (l *stdLogger) Errorf(format string, args ...interface{}) { log.Printf("ERROR "+format, args...) }
func (l *stdLogger) Debugf(format string, args ...interface{}) { log.Printf("DEBUG "+format, args...) }

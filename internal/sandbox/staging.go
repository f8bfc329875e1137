package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"featureforge/internal/collab"
)

// stageModule writes the code and tests into a fresh temp directory
// with a minimal module file so `go test` can run it standalone. Both
// sandboxes stage the same layout.
func stageModule(req collab.ExecutionRequest) (string, error) {
	dir, err := os.MkdirTemp("", "featureforge-"+req.FeatureID+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}

	files := map[string]string{
		"go.mod": fmt.Sprintf("module sandbox/%s\n\ngo 1.25\n", req.FeatureID),
	}
	if req.Code != "" {
		files["feature.go"] = req.Code
	}
	if req.Tests != "" {
		files["feature_test.go"] = req.Tests
	}

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("failed to stage %s: %w", name, err)
		}
	}
	return dir, nil
}

// Package backend implements the generation backend boundary over an
// OpenCode server. It owns prompt assembly and the strict parse of the
// model's free-text reply; callers only ever see schema-checked content.
package backend

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"

	"featureforge/internal/collab"
)

// Options configures the OpenCode backend.
type Options struct {
	// BaseURL of the opencode serve instance, e.g. http://localhost:4096.
	BaseURL string
	// Model identifier, e.g. "anthropic/claude-sonnet-4-5". Optional.
	Model string
}

// OpenCode is a collab.GenerationBackend backed by the OpenCode SDK.
// Each Generate call runs in its own session so hint-enriched retries
// never leak context between features.
type OpenCode struct {
	sdk  *opencode.Client
	opts Options
}

// New creates a backend connected to a local opencode serve instance.
func New(opts Options) *OpenCode {
	sdk := opencode.NewClient(
		option.WithBaseURL(opts.BaseURL),
	)
	return &OpenCode{sdk: sdk, opts: opts}
}

// Generate sends the assembled prompt and strict-parses the reply.
func (b *OpenCode) Generate(ctx context.Context, req collab.GenerationRequest) (string, error) {
	prompt := buildPrompt(req)

	session, err := b.sdk.Session.New(ctx, opencode.SessionNewParams{
		Title: opencode.F(fmt.Sprintf("%s/%s", req.FeatureID, req.Kind)),
	})
	if err != nil {
		return "", &collab.GenerationError{Kind: req.Kind, FeatureID: req.FeatureID, Err: fmt.Errorf("failed to create session: %w", err)}
	}

	parts := []opencode.SessionPromptParamsPartUnion{
		opencode.TextPartInputParam{
			Type: opencode.F(opencode.TextPartInputTypeText),
			Text: opencode.F(prompt),
		},
	}
	promptParams := opencode.SessionPromptParams{
		Parts: opencode.F(parts),
	}
	if b.opts.Model != "" {
		promptParams.Model = opencode.F(opencode.SessionPromptParamsModel{
			ModelID: opencode.F(b.opts.Model),
		})
	}

	message, err := b.sdk.Session.Prompt(ctx, session.ID, promptParams)
	if err != nil {
		return "", &collab.GenerationError{Kind: req.Kind, FeatureID: req.FeatureID, Err: fmt.Errorf("failed to send prompt: %w", err)}
	}

	var text strings.Builder
	for _, part := range message.Parts {
		if part.Type == opencode.PartTypeText {
			text.WriteString(part.Text)
		}
	}

	content, err := parseReply(req.Kind, text.String())
	if err != nil {
		return "", &collab.GenerationError{Kind: req.Kind, FeatureID: req.FeatureID, Err: err}
	}
	return content, nil
}

var codeFenceRegex = regexp.MustCompile("(?s)```(?:go|golang)?\\n(.*?)```")

// parseReply is the strict-schema step for model output. Code kinds
// must come back in a fenced code block; reviews are free text.
func parseReply(kind collab.GenerationKind, reply string) (string, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("empty reply from model")
	}
	if kind == collab.KindReview {
		return reply, nil
	}
	m := codeFenceRegex.FindStringSubmatch(reply)
	if m == nil {
		return "", fmt.Errorf("reply contains no fenced code block")
	}
	return strings.TrimSpace(m[1]) + "\n", nil
}

// buildPrompt assembles the per-kind instruction, the feature text,
// upstream artifacts, and the accumulated retry hints.
func buildPrompt(req collab.GenerationRequest) string {
	var sb strings.Builder

	switch req.Kind {
	case collab.KindTests:
		sb.WriteString("Write a failing Go test file for the feature below. ")
		sb.WriteString("The tests must exercise the described behavior and must fail until the feature is implemented. ")
		sb.WriteString("Reply with exactly one fenced Go code block.\n\n")
	case collab.KindImplementation:
		sb.WriteString("Implement the feature below so that the provided tests pass. ")
		sb.WriteString("Do not modify the tests. Reply with exactly one fenced Go code block.\n\n")
	case collab.KindReview:
		sb.WriteString("Review the implementation below for correctness and clarity. ")
		sb.WriteString("End your review with a line of the form `Score: N/10`.\n\n")
	}

	fmt.Fprintf(&sb, "Feature: %s\n", req.Title)
	fmt.Fprintf(&sb, "Description:\n%s\n", req.Description)

	if len(req.Upstream) > 0 {
		names := make([]string, 0, len(req.Upstream))
		for name := range req.Upstream {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("\nExisting artifacts:\n")
		for _, name := range names {
			fmt.Fprintf(&sb, "--- %s ---\n%s\n", name, req.Upstream[name])
		}
	}

	if len(req.Hints) > 0 {
		sb.WriteString("\nNotes from previous attempts (oldest first):\n")
		for i, hint := range req.Hints {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, hint)
		}
	}

	return sb.String()
}

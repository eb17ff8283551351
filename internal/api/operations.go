package api

import (
	"context"
	"fmt"
	"strings"
)

// Operation describes one assistant endpoint. Every operation is served both
// as a stream under /stream/<Path> and as a single response under /<Path>.
type Operation struct {
	// Name is the short command name.
	Name string
	// Path is the endpoint name without a leading slash.
	Path  string
	Short string
	// Required lists the wire names of params that must be non-empty.
	Required []string
}

// StreamPath returns the streaming endpoint.
func (o Operation) StreamPath() string { return "/stream/" + o.Path }

// CompletePath returns the non-streaming endpoint.
func (o Operation) CompletePath() string { return "/" + o.Path }

// Validate checks that every required param is set.
func (o Operation) Validate(p Params) error {
	var missing []string
	for _, name := range o.Required {
		if strings.TrimSpace(p.Field(name)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing %s", o.Name, strings.Join(missing, ", "))
	}
	return nil
}

// Operations is the table of assistant endpoints the backend exposes.
var Operations = []Operation{
	{Name: "explain", Path: "explain", Short: "Explain code or a programming topic", Required: []string{"language", "level"}},
	{Name: "debug", Path: "debug", Short: "Find and fix bugs in code", Required: []string{"language", "code"}},
	{Name: "generate", Path: "generate", Short: "Generate code for a topic", Required: []string{"language", "topic", "level"}},
	{Name: "convert", Path: "convert_logic", Short: "Turn plain-language logic into code", Required: []string{"logic", "language"}},
	{Name: "complexity", Path: "analyze_complexity", Short: "Analyze time and space complexity", Required: []string{"code"}},
	{Name: "trace", Path: "trace_code", Short: "Trace code execution step by step", Required: []string{"code", "language"}},
	{Name: "snippets", Path: "get_snippets", Short: "Get reusable snippets for a topic", Required: []string{"language", "snippet"}},
	{Name: "projects", Path: "get_projects", Short: "Suggest practice projects", Required: []string{"level", "topic"}},
	{Name: "roadmaps", Path: "get_roadmaps", Short: "Build a learning roadmap", Required: []string{"level", "topic"}},
	{Name: "review", Path: "review_code", Short: "Review code for quality issues", Required: []string{"code", "language"}},
	{Name: "tests", Path: "generate_tests", Short: "Generate unit tests for code", Required: []string{"code", "language", "framework"}},
	{Name: "refactor", Path: "refactor_code", Short: "Refactor code", Required: []string{"code", "language", "refactor_type"}},
}

// LookupOperation finds an operation by command name or endpoint path.
func LookupOperation(name string) (Operation, bool) {
	for _, op := range Operations {
		if op.Name == name || op.Path == name {
			return op, true
		}
	}
	return Operation{}, false
}

// StreamOperation validates params and streams op.
func (c *Client) StreamOperation(ctx context.Context, op Operation, params Params, onChunk func(string)) error {
	if err := op.Validate(params); err != nil {
		return err
	}
	return c.Stream(ctx, op.StreamPath(), params, onChunk)
}

// CompleteOperation validates params and calls the non-streaming form of op.
func (c *Client) CompleteOperation(ctx context.Context, op Operation, params Params) (string, error) {
	if err := op.Validate(params); err != nil {
		return "", err
	}
	return c.Complete(ctx, op.CompletePath(), params)
}

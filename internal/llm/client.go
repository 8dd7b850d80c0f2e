package llm

import "context"

// Client is the reasoning service consumed by the planner, the fallback
// chooser, and the content extractor. Both operations are fallible; callers
// must degrade to their deterministic paths on any error.
type Client interface {
	// GenerateStructured asks for a response constrained to the given JSON
	// schema and unmarshals it into out.
	GenerateStructured(ctx context.Context, systemInstruction, query string, schema map[string]any, out any) error
	// GenerateText returns free-form text for a prompt.
	GenerateText(ctx context.Context, prompt string) (string, error)
	Name() string
}

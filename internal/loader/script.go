package loader

import (
	"context"
	"fmt"
)

// ScriptEvaluator resolves a script migration file into a Descriptor.
// base is the file name without its extension.
type ScriptEvaluator interface {
	Evaluate(ctx context.Context, path, base string) (Descriptor, error)
}

// ScriptEvaluatorFunc adapts a function to ScriptEvaluator.
type ScriptEvaluatorFunc func(ctx context.Context, path, base string) (Descriptor, error)

func (f ScriptEvaluatorFunc) Evaluate(ctx context.Context, path, base string) (Descriptor, error) {
	return f(ctx, path, base)
}

// StubEvaluator never reads or runs the script. It names the migration after
// the file and gives it no-op bodies that every supported engine accepts.
type StubEvaluator struct{}

func (StubEvaluator) Evaluate(_ context.Context, _ string, base string) (Descriptor, error) {
	return Descriptor{
		Name: base,
		Up:   fmt.Sprintf("-- script migration %s (up)\nSELECT 1", base),
		Down: fmt.Sprintf("-- script migration %s (down)\nSELECT 1", base),
	}, nil
}

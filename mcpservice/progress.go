package mcpservice

import "context"

// ProgressReporter reports progress of a long-running operation. The engine
// injects one into the request context when the client supplied a progress
// token; tools retrieve it with ProgressFrom or through ToolResponseWriter.
type ProgressReporter interface {
	// Report emits a progress update. total may be zero when unknown.
	Report(ctx context.Context, progress, total float64, message string) error
}

type progressKey struct{}

// WithProgressReporter returns a new context carrying the provided reporter.
func WithProgressReporter(ctx context.Context, pr ProgressReporter) context.Context {
	if pr == nil {
		return ctx
	}
	return context.WithValue(ctx, progressKey{}, pr)
}

// ProgressFrom retrieves a ProgressReporter from the context if present.
func ProgressFrom(ctx context.Context) (ProgressReporter, bool) {
	pr, ok := ctx.Value(progressKey{}).(ProgressReporter)
	return pr, ok && pr != nil
}

package core

import "context"

type contextKey string

const ctxKeySource contextKey = "patient_source"

// ContextWithSource records who issued an operation ("cli", "api:10.0.0.4")
// so mutation logs can name it.
func ContextWithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, ctxKeySource, source)
}

// SourceFromContext returns the source set by ContextWithSource, or "".
func SourceFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySource).(string); ok {
		return v
	}
	return ""
}

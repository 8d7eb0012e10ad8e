package gqlrequest

import "context"

type ctxKeyAnalysis struct{}
type ctxKeyExecMeta struct{}

// ExecMeta captures request-scoped execution metadata.
type ExecMeta struct {
	Role        string
	Fingerprint string

	OperationName string
	OperationType string
	OperationHash string
}

// WithAnalysis stores GraphQL request analysis in context.
func WithAnalysis(ctx context.Context, analysis *Analysis) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyAnalysis{}, analysis)
}

// AnalysisFromContext retrieves GraphQL request analysis from context.
// Returns nil when no analysis was attached.
func AnalysisFromContext(ctx context.Context) *Analysis {
	if ctx == nil {
		return nil
	}
	analysis, _ := ctx.Value(ctxKeyAnalysis{}).(*Analysis)
	return analysis
}

// WithExecMeta stores immutable execution metadata in context.
func WithExecMeta(ctx context.Context, meta ExecMeta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyExecMeta{}, meta)
}

// ExecMetaFromContext retrieves execution metadata from context.
func ExecMetaFromContext(ctx context.Context) (ExecMeta, bool) {
	if ctx == nil {
		return ExecMeta{}, false
	}
	meta, ok := ctx.Value(ctxKeyExecMeta{}).(ExecMeta)
	return meta, ok
}

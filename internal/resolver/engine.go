// Package resolver turns raw GraphQL requests into response envelopes.
//
// A request moves through a fixed pipeline: parse, operation selection,
// request limits, variable materialization, fragment inlining, dispatch,
// compile or plan cache hit, bind, execute. Meta selections (__schema,
// __type, __typename) are answered from the catalog snapshot without
// touching the database; data selections compile to one SQL statement whose
// one-row JSON result becomes the data object. Mixed operations resolve each
// top-level field through its own path and merge under a single data map.
// Every terminal path, panics included, yields a well-formed envelope.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/graphql-go/graphql/language/ast"
	"go.opentelemetry.io/otel/attribute"

	"mysql-graphql/internal/catalog"
	"mysql-graphql/internal/compiler"
	"mysql-graphql/internal/dbexec"
	"mysql-graphql/internal/gqlrequest"
	"mysql-graphql/internal/introspect"
	"mysql-graphql/internal/logging"
	"mysql-graphql/internal/observability"
)

// Request is one GraphQL request after transport decoding.
type Request struct {
	Query         string
	OperationName string
	Variables     map[string]interface{}
}

// Response is the envelope returned for every request. Data is null whenever
// Errors is non-empty; Errors is omitted when empty.
type Response struct {
	Data   interface{} `json:"data"`
	Errors []string    `json:"errors,omitempty"`
}

// Snapshot is the immutable schema state one request resolves against.
type Snapshot struct {
	Catalog *catalog.Catalog
	Meta    *introspect.Resolver
	Version uint64
}

// SnapshotFunc returns the snapshot serving the request. The engine holds
// the returned value for the whole request, so a concurrent refresh swap
// never tears a running resolution.
type SnapshotFunc func(ctx context.Context) (Snapshot, error)

// RequestLimits bounds request shape before compilation. Zero fields
// disable the corresponding limit.
type RequestLimits struct {
	MaxDepth   int
	MaxFields  int
	MaxAliases int
}

// Config assembles an Engine.
type Config struct {
	Snapshots   SnapshotFunc
	Executor    dbexec.QueryExecutor
	RoleFromCtx func(context.Context) (string, bool)
	Limits      RequestLimits
	PageLimits  compiler.Limits
	// PlanCacheEntries caps the number of cached plans; zero uses the
	// package default.
	PlanCacheEntries int64
	Metrics          *observability.GraphQLMetrics
	Logger           *logging.Logger
}

// Engine resolves GraphQL requests against the current schema snapshot.
type Engine struct {
	snapshots   SnapshotFunc
	executor    dbexec.QueryExecutor
	roleFromCtx func(context.Context) (string, bool)
	limits      RequestLimits
	pageLimits  compiler.Limits
	plans       *planCache
	metrics     *observability.GraphQLMetrics
	logger      *logging.Logger
}

// NewEngine validates the configuration and builds an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Snapshots == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("query executor is required")
	}
	plans, err := newPlanCache(cfg.PlanCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("create plan cache: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.Config{})
	}
	return &Engine{
		snapshots:   cfg.Snapshots,
		executor:    cfg.Executor,
		roleFromCtx: cfg.RoleFromCtx,
		limits:      cfg.Limits,
		pageLimits:  cfg.PageLimits,
		plans:       plans,
		metrics:     cfg.Metrics,
		logger:      logger,
	}, nil
}

// Close releases the plan cache.
func (e *Engine) Close() {
	e.plans.close()
}

// Resolve runs one request end to end and always returns a well-formed
// envelope.
func (e *Engine) Resolve(ctx context.Context, req Request) Response {
	started := time.Now()
	ctx, span := startEngineSpan(ctx, "graphql.resolve")
	defer span.End()
	if e.metrics != nil {
		e.metrics.IncrementActiveRequests(ctx)
		defer e.metrics.DecrementActiveRequests(ctx)
	}

	resp, opType := e.resolve(ctx, req)

	span.SetAttributes(
		attribute.String("graphql.operation.type", opType),
		attribute.Bool("graphql.response.has_errors", len(resp.Errors) > 0),
	)
	finishEngineSpan(span, len(resp.Errors) > 0)
	if e.metrics != nil {
		e.metrics.RecordRequest(ctx, time.Since(started), len(resp.Errors) > 0, opType)
	}
	return resp
}

func (e *Engine) resolve(ctx context.Context, req Request) (resp Response, opType string) {
	opType = "unknown"
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during request resolution", "panic", r)
			resp = Response{Errors: []string{fmt.Sprintf("internal error: %v", r)}}
		}
	}()

	analysis := gqlrequest.AnalyzeEnvelope(gqlrequest.Envelope{
		Query:         req.Query,
		OperationName: req.OperationName,
	})
	if analysis.ParseError != nil {
		return Response{Errors: []string{analysis.ParseError.Error()}}, opType
	}
	if analysis.Document == nil {
		return Response{Errors: []string{"request does not include a query"}}, opType
	}
	if analysis.SelectionError != nil {
		return Response{Errors: []string{analysis.SelectionError.Error()}}, opType
	}

	op := analysis.Operation
	opType = analysis.OperationType
	if opType != "query" {
		return Response{Errors: []string{fmt.Sprintf("unsupported operation type '%s'", opType)}}, opType
	}
	if msg := checkRequestLimits(analysis, e.limits); msg != "" {
		return Response{Errors: []string{msg}}, opType
	}
	if e.metrics != nil {
		e.metrics.RecordQueryDepth(ctx, int64(analysis.SelectionDepth), opType)
	}

	vars, err := effectiveVariables(op, req.Variables)
	if err != nil {
		return Response{Errors: []string{err.Error()}}, opType
	}

	snap, err := e.snapshots(ctx)
	if err != nil {
		return Response{Errors: []string{fmt.Sprintf("schema unavailable: %v", err)}}, opType
	}
	if snap.Catalog == nil {
		return Response{Errors: []string{"schema unavailable: snapshot has no catalog"}}, opType
	}

	inl := newInliner(snap.Catalog, analysis.Fragments, vars)
	top, err := inl.topLevelFields(op)
	if err != nil {
		return Response{Errors: []string{err.Error()}}, opType
	}

	var metaFields, dataFields []*ast.Field
	for _, f := range top {
		if strings.HasPrefix(selectionFieldName(f), "__") {
			metaFields = append(metaFields, f)
		} else {
			dataFields = append(dataFields, f)
		}
	}

	data := map[string]interface{}{}

	if len(metaFields) > 0 {
		if snap.Meta == nil {
			return Response{Errors: []string{"schema unavailable: snapshot has no meta resolver"}}, opType
		}
		metaData, metaErrs := snap.Meta.Resolve(ctx, analysis.Document, op, metaFields, req.Variables)
		if len(metaErrs) > 0 {
			return Response{Errors: metaErrs}, opType
		}
		for k, v := range metaData {
			data[k] = v
		}
	}

	if len(dataFields) > 0 {
		payload, errs := e.resolveData(ctx, snap, op, dataFields, inl, req.Query, analysis.OperationName)
		if len(errs) > 0 {
			return Response{Errors: errs}, opType
		}
		for k, v := range payload {
			data[k] = v
		}
	}

	return Response{Data: data}, opType
}

func (e *Engine) resolveData(ctx context.Context, snap Snapshot, op *ast.OperationDefinition, fields []*ast.Field, inl *inliner, rawQuery, opName string) (map[string]interface{}, []string) {
	role := ""
	if e.roleFromCtx != nil {
		if r, ok := e.roleFromCtx(ctx); ok {
			role = r
		}
	}
	key := planKey(role, snap.Version, rawQuery, opName)

	plan, hit := e.plans.get(key)
	if hit {
		if e.metrics != nil {
			e.metrics.RecordPlanCacheHit(ctx)
		}
	} else {
		if e.metrics != nil {
			e.metrics.RecordPlanCacheMiss(ctx)
		}
		dataOp, err := inl.dataOperation(op, fields)
		if err != nil {
			return nil, []string{err.Error()}
		}
		plan, err = compiler.Compile(snap.Catalog, dataOp, compiler.MapVars(inl.vars), e.pageLimits)
		if err != nil {
			return nil, []string{err.Error()}
		}
		// Variable-valued @skip/@include conditions shape the statement the
		// same way eagerly evaluated variables do.
		if plan.Cacheable && !inl.variableConditions {
			e.plans.put(key, plan)
		}
		e.logger.Debug("compiled statement",
			"operation", opName,
			"fields", len(plan.Fields),
			"slots", len(plan.Slots),
			"cacheable", plan.Cacheable && !inl.variableConditions,
		)
	}

	args, err := compiler.BindSlots(plan.Slots, compiler.MapVars(inl.vars))
	if err != nil {
		return nil, []string{err.Error()}
	}

	payload, err := e.queryPayload(ctx, plan.SQL, args)
	if err != nil {
		e.logger.Error("statement execution failed", "operation", opName, "error", err)
		return nil, []string{fmt.Sprintf("execution failed: %v", err)}
	}
	return payload, nil
}

// queryPayload runs the compiled statement and decodes its single JSON cell.
// UseNumber keeps 64-bit results exact through the envelope.
func (e *Engine) queryPayload(ctx context.Context, sqlText string, args []interface{}) (map[string]interface{}, error) {
	rows, err := e.executor.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("statement returned no result row")
	}
	var raw []byte
	if err := rows.Scan(&raw); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed result payload: %w", err)
	}
	return payload, nil
}

func checkRequestLimits(a *gqlrequest.Analysis, limits RequestLimits) string {
	if limits.MaxDepth > 0 && a.SelectionDepth > limits.MaxDepth {
		return fmt.Sprintf("query exceeds maximum depth of %d (depth: %d)", limits.MaxDepth, a.SelectionDepth)
	}
	if limits.MaxFields > 0 && a.FieldCount > limits.MaxFields {
		return fmt.Sprintf("query exceeds maximum field count of %d (fields: %d)", limits.MaxFields, a.FieldCount)
	}
	if limits.MaxAliases > 0 && a.AliasCount > limits.MaxAliases {
		return fmt.Sprintf("query exceeds maximum alias count of %d (aliases: %d)", limits.MaxAliases, a.AliasCount)
	}
	return ""
}

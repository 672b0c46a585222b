// Package database provides the BMD query layer: the query registry, the
// parameter binder, the row mapper and the execution facade.
//
// FILE: queries.go
// PURPOSE: Base Queries struct and constructor. This is the entry point for all
// database operations: every call binds, executes once and maps the rows.
// Nothing is retried and nothing is held between calls.
//
// KEY TYPES:
// - Queries: execution facade over a Pool and a Registry
//
// RELATED FILES:
// - queries_client.go: client lookups
// - queries_employee.go: responsible employees and case handlers
// - queries_contact.go: contact persons
// - binder.go, scanners.go: binding and row mapping
package database

import (
	"context"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/ACONIO/swstb.crm.birthdays-new/internal/database"

// Query names of the embedded registry
const (
	QueryClientByEmailDOB         = "client_by_email_dob"
	QueryClientFromFristByID      = "client_from_frist_by_id"
	QueryClientFromFristByClient  = "client_from_frist_by_client"
	QueryResponsibleEmployees     = "responsible_employees"
	QuerySachbearbeiterOfClient   = "sachbearbeiter_of_client"
	QueryFristEmployee            = "frist_employee"
	QueryClientEmailByAdressart   = "client_email_by_adressart"
	QueryDisplayEmail             = "display_email"
	QueryContactPersonsIdentifier = "cp_by_identifier"
	QueryContactPersonsMain       = "cp_main"
	QuerySalutationFreifeld       = "salutation_freifeld"
)

// Queries provides database operations against the BMD schema
type Queries struct {
	pool     *Pool
	registry *Registry
	logger   *slog.Logger

	tracer     trace.Tracer
	executions metric.Int64Counter
	duration   metric.Float64Histogram
}

// Option configures a Queries instance
type Option func(*options)

type options struct {
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracerProvider enables tracing of query executions
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider enables execution counters and latency histograms
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// NewQueries creates a new Queries instance
func NewQueries(pool *Pool, registry *Registry, opts ...Option) *Queries {
	o := options{
		logger:         slog.Default(),
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentationName)
	// On error the SDK still returns a usable no-op instrument
	executions, err := meter.Int64Counter("bmdq.query.executions",
		metric.WithDescription("Number of query executions by query and outcome"))
	if err != nil {
		o.logger.Warn("create execution counter", "error", err)
	}
	duration, err := meter.Float64Histogram("bmdq.query.duration",
		metric.WithDescription("Query execution time until the last row was read"),
		metric.WithUnit("ms"))
	if err != nil {
		o.logger.Warn("create duration histogram", "error", err)
	}

	return &Queries{
		pool:       pool,
		registry:   registry,
		logger:     o.logger,
		tracer:     o.tracerProvider.Tracer(instrumentationName),
		executions: executions,
		duration:   duration,
	}
}

// Registry returns the registry the queries are resolved against
func (q *Queries) Registry() *Registry {
	return q.registry
}

// Pool returns the pool used for execution
func (q *Queries) Pool() *Pool {
	return q.pool
}

// Run executes the named query and returns every row. Zero rows is an empty,
// non-nil slice.
func (q *Queries) Run(ctx context.Context, name string, params Params) ([]Record, error) {
	def, err := q.registry.Get(name)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0)
	err = q.execute(ctx, def, params, func(rec Record) bool {
		records = append(records, rec)
		return true
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Stream executes the named query lazily: nothing is sent to the database
// until the sequence is ranged over, and rows are mapped one at a time.
// The sequence can be consumed once; ranging again yields ErrSequenceConsumed.
// Errors are yielded as the last element.
func (q *Queries) Stream(ctx context.Context, name string, params Params) iter.Seq2[Record, error] {
	var consumed atomic.Bool
	return func(yield func(Record, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(nil, ErrSequenceConsumed)
			return
		}

		def, err := q.registry.Get(name)
		if err != nil {
			yield(nil, err)
			return
		}

		stopped := false
		err = q.execute(ctx, def, params, func(rec Record) bool {
			if !yield(rec, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}

// first returns the first row of the named query, or nil when there is none
func (q *Queries) first(ctx context.Context, name string, params Params) (Record, error) {
	def, err := q.registry.Get(name)
	if err != nil {
		return nil, err
	}

	var found Record
	err = q.execute(ctx, def, params, func(rec Record) bool {
		found = rec
		return false
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// execute binds params, runs the query and hands each mapped row to fn until
// fn returns false. Binding errors are returned before anything is sent.
func (q *Queries) execute(ctx context.Context, def *Definition, params Params, fn func(Record) bool) (err error) {
	bound, err := Bind(def, params, q.pool.Dialect())
	if err != nil {
		return err
	}

	invocationID := uuid.NewString()
	start := time.Now()
	rowCount := 0

	ctx, span := q.tracer.Start(ctx, "bmdq.query "+def.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", string(q.pool.Dialect())),
			attribute.String("db.operation", "SELECT"),
			attribute.String("bmdq.query", def.Name),
			attribute.String("bmdq.fingerprint", def.FingerprintHex()),
			attribute.Int("bmdq.args", len(bound.Args)),
		))

	defer func() {
		elapsed := time.Since(start)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			q.logger.Warn("query failed",
				"query", def.Name,
				"invocation_id", invocationID,
				"duration", elapsed,
				"error", err)
		} else {
			q.logger.Debug("query executed",
				"query", def.Name,
				"fingerprint", def.FingerprintHex(),
				"invocation_id", invocationID,
				"rows", rowCount,
				"duration", elapsed)
		}
		span.SetAttributes(attribute.Int("bmdq.rows", rowCount))
		span.End()

		attrs := metric.WithAttributes(
			attribute.String("query", def.Name),
			attribute.String("outcome", outcome))
		if q.executions != nil {
			q.executions.Add(ctx, 1, attrs)
		}
		if q.duration != nil {
			q.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
		}
	}()

	rows, err := q.pool.QueryxContext(ctx, bound.SQL, bound.Args...)
	if err != nil {
		return newExecutionError(def.Name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return newExecutionError(def.Name, err)
	}
	idx := resolveColumns(def.Columns, columns)

	for rows.Next() {
		values, scanErr := rows.SliceScan()
		if scanErr != nil {
			return newExecutionError(def.Name, scanErr)
		}
		rowCount++
		if !fn(mapRow(def.Columns, idx, values)) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return newExecutionError(def.Name, err)
	}
	return nil
}

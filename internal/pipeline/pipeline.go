// Package pipeline orchestrates full reloads of the input directory and
// serves the derived tables of the latest snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"aadhaar/internal/core"
	"aadhaar/internal/loader"
	"aadhaar/internal/log"
)

const tracerName = "aadhaar/pipeline"

// Source loads one category table. *loader.Loader is the production source.
type Source interface {
	Load(ctx context.Context, c core.Category) (core.Table, loader.Report, error)
}

// Observer is notified after every snapshot swap. Implementations must not
// block for long; failures are theirs to log.
type Observer interface {
	ReloadCompleted(ctx context.Context, snap *Snapshot, report Report)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, snap *Snapshot, report Report)

// ReloadCompleted calls f.
func (f ObserverFunc) ReloadCompleted(ctx context.Context, snap *Snapshot, report Report) {
	f(ctx, snap, report)
}

// Pipeline owns the current snapshot.
type Pipeline struct {
	source  Source
	logger  *log.Logger
	slogger *log.StructuredLogger
	tracer  trace.Tracer

	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	group   singleflight.Group

	mu        sync.RWMutex
	observers []Observer
}

// New creates a pipeline serving the empty snapshot until the first reload.
func New(source Source, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentPipeline)
	p := &Pipeline{
		source:  source,
		logger:  logger,
		slogger: log.NewStructuredLogger(logger),
		tracer:  otel.Tracer(tracerName),
	}
	p.current.Store(emptySnapshot())
	return p
}

// AddObserver registers an observer for subsequent reloads.
func (p *Pipeline) AddObserver(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// Current returns the snapshot currently served.
func (p *Pipeline) Current() *Snapshot {
	return p.current.Load()
}

// Ready reports whether at least one reload has completed.
func (p *Pipeline) Ready() bool {
	return p.Current().Version > 0
}

// Reload performs a full reload. It never fails: category errors leave that
// category empty and unexpected failures swap in the empty snapshot.
// Concurrent callers share the reload in flight.
func (p *Pipeline) Reload(ctx context.Context, trigger string) Report {
	v, _, _ := p.group.Do("reload", func() (any, error) {
		return p.reload(ctx, trigger), nil
	})
	return v.(Report)
}

func (p *Pipeline) reload(ctx context.Context, trigger string) Report {
	runID := uuid.NewString()
	started := time.Now()

	ctx, span := p.tracer.Start(ctx, "pipeline.reload", trace.WithAttributes(
		attribute.String("aadhaar.run_id", runID),
		attribute.String("aadhaar.trigger", trigger),
	))
	defer span.End()

	logger := p.logger.With(log.FieldRunID, runID)
	logger.InfoContext(ctx, "Reload started", log.FieldTrigger, trigger)

	snap, report := p.build(ctx)

	report.RunID = runID
	report.Trigger = trigger
	report.StartedAt = started
	report.Version = p.version.Add(1)
	report.Duration = time.Since(started)
	report.DurationMs = report.Duration.Milliseconds()

	snap.Version = report.Version
	snap.RunID = runID
	snap.LoadedAt = time.Now()
	p.current.Store(snap)

	span.SetAttributes(
		attribute.Int64("aadhaar.version", int64(report.Version)),
		attribute.String("aadhaar.status", string(report.Status)),
		attribute.Int("aadhaar.records", report.Records()),
	)
	if report.Status == StatusFailed {
		span.SetStatus(codes.Error, report.Cause)
	}

	p.slogger.LogReloadCompleted(ctx, runID, report.Version, string(report.Status), report.DurationMs, len(snap.Summary))
	p.notify(ctx, snap, report)
	return report
}

// build runs the loads and the aggregation. Any panic or unexpected error
// yields the degraded empty snapshot.
func (p *Pipeline) build(ctx context.Context) (snap *Snapshot, report Report) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			p.logger.ErrorContext(ctx, "Reload panicked",
				log.FieldError, err.Error(),
				log.FieldErrorType, log.ErrorTypeUnexpected,
				"stack", string(debug.Stack()),
			)
			snap, report = p.degraded(ctx, err)
		}
	}()

	categories := core.Categories()
	tables := make([]core.Table, len(categories))
	reports := make([]loader.Report, len(categories))
	errs := make([]error, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range categories {
		i, c := i, c
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("load %s: panic: %v", c, r)
				}
			}()

			t, lr, err := p.source.Load(gctx, c)
			reports[i] = lr
			if err == nil {
				tables[i] = t
				return nil
			}
			if !errors.Is(err, loader.ErrMalformedInput) {
				return fmt.Errorf("load %s: %w", c, err)
			}
			errs[i] = err
			tables[i] = core.Table{Category: c, Records: []core.Record{}}
			p.slogger.LogError(ctx, "Category load failed", err, log.OpLoad,
				log.NewFields().WithCategory(c.String()).WithErrorType(log.ErrorTypeMalformed))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return p.degraded(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return p.degraded(ctx, err)
	}

	byCategory := make(map[core.Category]core.Table, len(categories))
	reportsBy := make(map[core.Category]loader.Report, len(categories))
	report = Report{Status: StatusOK, Categories: make([]CategoryReport, len(categories))}
	for i, c := range categories {
		byCategory[c] = tables[i]
		if errs[i] == nil {
			reportsBy[c] = reports[i]
		} else {
			report.Status = StatusPartial
		}
		report.Categories[i] = categoryReport(c, reports[i], errs[i])
	}

	return newSnapshot(byCategory, reportsBy), report
}

func (p *Pipeline) degraded(ctx context.Context, cause error) (*Snapshot, Report) {
	p.slogger.LogError(ctx, "Reload failed, serving empty snapshot", cause, log.OpReload,
		log.NewFields().WithErrorType(log.ErrorTypeUnexpected))
	trace.SpanFromContext(ctx).RecordError(cause)

	snap := emptySnapshot()
	snap.Degraded = true
	snap.Cause = cause.Error()

	report := Report{Status: StatusFailed, Cause: cause.Error()}
	for _, c := range core.Categories() {
		report.Categories = append(report.Categories, CategoryReport{Category: c})
	}
	return snap, report
}

func (p *Pipeline) notify(ctx context.Context, snap *Snapshot, report Report) {
	p.mu.RLock()
	observers := append([]Observer(nil), p.observers...)
	p.mu.RUnlock()

	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.ErrorContext(ctx, "Reload observer panicked", log.FieldError, fmt.Sprint(r))
				}
			}()
			o.ReloadCompleted(ctx, snap, report)
		}()
	}
}

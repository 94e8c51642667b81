// Package pipeline drives procedures through compaction, CFG construction,
// interval decomposition and dataflow graph construction.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/malphas-lang/ifconv/internal/cfg"
	"github.com/malphas-lang/ifconv/internal/config"
	"github.com/malphas-lang/ifconv/internal/dfg"
	"github.com/malphas-lang/ifconv/internal/diag"
	"github.com/malphas-lang/ifconv/internal/dom"
	"github.com/malphas-lang/ifconv/internal/interval"
	"github.com/malphas-lang/ifconv/internal/mir"
	"github.com/malphas-lang/ifconv/internal/mir/optimize"
)

var tracer = otel.Tracer("ifconv/pipeline")

// Result holds every artifact produced for one procedure.
type Result struct {
	// Compacted is the procedure after boolean compaction. The input
	// procedure is left untouched.
	Compacted *mir.Function
	Stats     optimize.Stats

	// CFG is the acyclic graph of Compacted, including the join nodes
	// inserted by interval decomposition.
	CFG       *cfg.Graph
	Dom       *dom.Tree
	PostDom   *dom.Tree
	Intervals *interval.Interval

	DFG *dfg.Graph
}

// Convert runs the whole conversion for fn.
func Convert(ctx context.Context, fn *mir.Function, conf config.Config) (*Result, error) {
	log := conf.Logger().With(slog.String("procedure", fn.Name))
	ctx, span := tracer.Start(ctx, "convert", trace.WithAttributes(
		attribute.String("procedure", fn.Name),
		attribute.Int("blocks", len(fn.Blocks)),
	))
	defer span.End()
	start := time.Now()

	res := &Result{}
	err := run(ctx, log, "compact", func(span trace.Span) error {
		res.Compacted, res.Stats = optimize.Compact(fn)
		span.SetAttributes(
			attribute.Int("folded", res.Stats.Folded),
			attribute.Int("compounds", res.Stats.Compounds),
			attribute.Int("nots", res.Stats.Nots),
			attribute.Int("removed", res.Stats.Removed),
		)
		return nil
	})
	if err == nil {
		err = run(ctx, log, "cfg", func(span trace.Span) error {
			g, err := cfg.Build(res.Compacted)
			if err != nil {
				return err
			}
			res.CFG = g
			span.SetAttributes(attribute.Int("nodes", g.Len()))
			return nil
		})
	}
	if err == nil {
		err = run(ctx, log, "interval", func(span trace.Span) error {
			head, err := interval.Decompose(res.CFG, conf)
			if err != nil {
				return err
			}
			res.Intervals = head
			span.SetAttributes(attribute.Int("nodes", res.CFG.Len()))
			return nil
		})
	}
	if err == nil {
		err = run(ctx, log, "dominance", func(trace.Span) error {
			var err error
			if res.Dom, err = dom.Dominators(res.CFG, res.CFG.Source); err != nil {
				return err
			}
			res.PostDom, err = dom.PostDominators(res.CFG, res.CFG.Sink)
			return err
		})
	}
	if err == nil {
		err = run(ctx, log, "dataflow", func(span trace.Span) error {
			g, err := dfg.Build(res.Compacted, res.CFG, res.Intervals, conf)
			if err != nil {
				return err
			}
			res.DFG = g
			span.SetAttributes(
				attribute.Int("nodes", g.Len()),
				attribute.Int("muxes", len(g.Muxes())),
			)
			return nil
		})
	}
	if err != nil {
		err = diag.InProcedure(err, fn.Name)
		span.RecordError(err)
		span.SetStatus(codes.Error, "conversion failed")
		log.Debug("conversion failed", slog.Any("error", err))
		return nil, err
	}

	log.Debug("conversion complete",
		slog.String("dataflow", res.DFG.Summary()),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// run executes one stage in its own span.
func run(ctx context.Context, log *slog.Logger, name string, stage func(trace.Span) error) error {
	_, span := tracer.Start(ctx, name)
	defer span.End()
	if err := stage(span); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
		return err
	}
	log.Debug("stage complete", slog.String("stage", name))
	return nil
}

// Outcome is the result of one procedure of a batch.
type Outcome struct {
	Function *mir.Function
	Result   *Result
	Err      error
}

// Failed reports whether the procedure could not be converted.
func (o Outcome) Failed() bool { return o.Err != nil }

// String returns a one-line summary of the outcome.
func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: failed", o.Function.Name)
	}
	return fmt.Sprintf("%s: %s", o.Function.Name, o.Result.DFG.Summary())
}

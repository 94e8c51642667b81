package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nikandfor/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/malphas-lang/ifconv/internal/config"
	"github.com/malphas-lang/ifconv/internal/mir"
)

// ConvertModule converts every procedure of module on conf.WorkerCount()
// goroutines. Outcomes are returned in input order. A failing procedure
// does not affect the others; once ctx is done no further procedure is
// started and the remaining outcomes carry ctx's error.
func ConvertModule(ctx context.Context, module *mir.Module, conf config.Config) []Outcome {
	ctx, span := tracer.Start(ctx, "convert-module", trace.WithAttributes(
		attribute.Int("procedures", len(module.Functions)),
		attribute.Int("workers", conf.WorkerCount()),
	))
	defer span.End()

	outcomes := make([]Outcome, len(module.Functions))
	started := make([]bool, len(module.Functions))
	for i, fn := range module.Functions {
		outcomes[i].Function = fn
	}

	workers := min(conf.WorkerCount(), len(module.Functions))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i].Result, outcomes[i].Err = convertIsolated(ctx, module.Functions[i], conf)
			}
		}()
	}

feed:
	for i := range module.Functions {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- i:
			started[i] = true
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for i := range outcomes {
		if !started[i] {
			outcomes[i].Err = errors.Wrap(context.Cause(ctx), "%s not converted", outcomes[i].Function.Name)
		}
		if outcomes[i].Err != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("failed", failed))
	return outcomes
}

// convertIsolated converts fn, turning a panic into an error so that one
// procedure cannot take the batch down.
func convertIsolated(ctx context.Context, fn *mir.Function, conf config.Config) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, errors.New("%s: internal error: %v", fn.Name, r)
		}
	}()
	return Convert(ctx, fn, conf)
}

// WriteDOT writes the compacted CFG and the dataflow graph of a successful
// outcome to dir as <procedure>.cfg.dot and <procedure>.dfg.dot.
func WriteDOT(dir string, o Outcome) error {
	if o.Result == nil {
		return errors.New("%s has no graphs to write", o.Function.Name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create dot directory")
	}
	base := filepath.Join(dir, fileName(o.Function.Name))

	data, err := o.Result.CFG.MarshalDOT(o.Function.Name)
	if err != nil {
		return errors.Wrap(err, "marshal cfg of %s", o.Function.Name)
	}
	if err := os.WriteFile(base+".cfg.dot", data, 0o644); err != nil {
		return errors.Wrap(err, "write cfg of %s", o.Function.Name)
	}

	data, err = o.Result.DFG.MarshalDOT(o.Function.Name)
	if err != nil {
		return errors.Wrap(err, "marshal dataflow graph of %s", o.Function.Name)
	}
	if err := os.WriteFile(base+".dfg.dot", data, 0o644); err != nil {
		return errors.Wrap(err, "write dataflow graph of %s", o.Function.Name)
	}
	return nil
}

// fileName maps a procedure name to a file name without path separators.
func fileName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
}

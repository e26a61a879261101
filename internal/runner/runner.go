// Package runner drives a lint run end to end: decode, select, verify, the
// optional strict pass, the failure gate and the finding filter.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"runtime"

	"github.com/google/uuid"

	"github.com/rendis/joblint/internal/decode"
	"github.com/rendis/joblint/internal/expressions"
	"github.com/rendis/joblint/internal/linter"
	"github.com/rendis/joblint/internal/logging"
	"github.com/rendis/joblint/internal/report"
	"github.com/rendis/joblint/internal/validation"
	"github.com/rendis/joblint/pkg/schema"
)

// Options configures a Runner. The zero value lints with no stage registry,
// no strict pass and the default gate.
type Options struct {
	// Resolver answers for stages the document does not declare.
	Resolver linter.StageResolver
	// Strict adds the JSON Schema, semantic and graph checks.
	Strict bool
	// Schema replaces the built-in job schema in the strict pass.
	Schema []byte
	// Select is a jq query locating the job inside a larger document.
	Select string
	// Filter is an expr predicate over findings; rejected ones are hidden.
	Filter string
	// FailOn is the CEL gate policy. Empty means expressions.DefaultGatePolicy.
	FailOn string
	// Concurrency bounds RunFiles. Zero means GOMAXPROCS.
	Concurrency int
	Logger      *slog.Logger
}

// Runner lints documents with a fixed configuration. It is safe for
// concurrent use; every run gets its own Verifier.
type Runner struct {
	opts      Options
	logger    *slog.Logger
	jq        *expressions.GoJQEngine
	gate      *expressions.Gate
	filter    *expressions.FindingFilter
	validator *validation.JobValidator
	newID     func() string
}

// New compiles the gate, filter and schema up front so a bad flag fails
// before any document is read.
func New(opts Options) (*Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	gate, err := expressions.NewGate(cel, opts.FailOn)
	if err != nil {
		return nil, err
	}
	filter, err := expressions.NewFindingFilter(expressions.NewExprEngine(), opts.Filter)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		opts:   opts,
		logger: logger,
		jq:     expressions.NewGoJQEngine(),
		gate:   gate,
		filter: filter,
		newID:  uuid.NewString,
	}

	if opts.Strict {
		if r.validator, err = validation.NewJobValidator(); err != nil {
			return nil, err
		}
		if len(opts.Schema) > 0 {
			if _, err := r.validator.ValidateCustom(schema.Null(), opts.Schema); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Policy returns the gate policy in effect.
func (r *Runner) Policy() string { return r.gate.Policy() }

// Run lints an already decoded document.
func (r *Runner) Run(ctx context.Context, source string, doc schema.Value) (*report.Report, error) {
	runID := r.newID()
	ctx = logging.WithSource(logging.WithRunID(ctx, runID), source)
	logger := logging.LogWith(ctx, r.logger)

	job, err := decode.Select(ctx, r.jq, doc, r.opts.Select)
	if err != nil {
		return r.unreadable(ctx, source, runID, err)
	}

	v := linter.NewVerifier(r.opts.Resolver, logger)
	v.VerifyContext(ctx, job)

	var strict *schema.ValidationResult
	if r.validator != nil {
		if strict, err = r.strictPass(job); err != nil {
			return nil, err
		}
	}

	return r.finish(ctx, source, runID, v.Status(), job, strict)
}

// RunBytes decodes data in the given format and lints it.
func (r *Runner) RunBytes(ctx context.Context, source string, data []byte, format decode.Format) (*report.Report, error) {
	doc, err := decode.DecodeBytes(data, format)
	if err != nil {
		return r.unreadable(ctx, source, r.newID(), err)
	}
	return r.Run(ctx, source, doc)
}

// RunFile reads and lints the job file at path.
func (r *Runner) RunFile(ctx context.Context, path string) (*report.Report, error) {
	doc, err := decode.File(path)
	if err != nil {
		return r.unreadable(ctx, path, r.newID(), err)
	}
	return r.Run(ctx, path, doc)
}

// RunFiles lints paths concurrently. Reports come back in input order. The
// first run error, if any, is returned alongside the reports that finished.
func (r *Runner) RunFiles(ctx context.Context, paths []string) ([]*report.Report, error) {
	size := r.opts.Concurrency
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	pool := NewPool(size)
	defer pool.Shutdown()

	reports := make([]*report.Report, len(paths))
	errs := make([]error, len(paths))

	for i, path := range paths {
		err := pool.Submit(ctx, func(ctx context.Context) error {
			rep, err := r.RunFile(ctx, path)
			reports[i], errs[i] = rep, err
			return err
		}, func(err error) {
			errs[i] = err
		})
		if err != nil {
			errs[i] = err
			break
		}
	}
	pool.Wait()

	m := pool.Metrics()
	r.logger.DebugContext(ctx, "lint batch finished",
		slog.Int("files", len(paths)),
		slog.Int64("completed", m.Completed),
		slog.Int64("failed", m.Failed),
	)

	out := reports[:0]
	for _, rep := range reports {
		if rep != nil {
			out = append(out, rep)
		}
	}
	return out, errors.Join(errs...)
}

func (r *Runner) strictPass(job schema.Value) (*schema.ValidationResult, error) {
	if len(r.opts.Schema) > 0 {
		return r.validator.ValidateCustom(job, r.opts.Schema)
	}
	return r.validator.ValidateDocument(job), nil
}

// unreadable turns a decode or selection failure into a failed report, so
// one bad file does not hide the results of the others.
func (r *Runner) unreadable(ctx context.Context, source, runID string, cause error) (*report.Report, error) {
	ctx = logging.WithSource(logging.WithRunID(ctx, runID), source)
	logging.LogWith(ctx, r.logger).WarnContext(ctx, "job unreadable", slog.String("error", cause.Error()))

	log := schema.NewFindingLog()
	log.Error("The job could not be read: " + cause.Error())
	return r.finish(ctx, source, runID, log, schema.Null(), nil)
}

func (r *Runner) finish(ctx context.Context, source, runID string, log *schema.FindingLog, job schema.Value, strict *schema.ValidationResult) (*report.Report, error) {
	rep := report.New(source, runID, log)
	rep.Schema = strict

	failed, err := r.gate.Fails(ctx, log, job)
	if err != nil {
		return nil, err
	}
	if strict != nil && !strict.Valid() {
		failed = true
	}
	rep.Gate(r.gate.Policy(), failed)

	if err := rep.Filter(ctx, r.filter); err != nil {
		return nil, err
	}

	logging.LogWith(ctx, r.logger).InfoContext(ctx, "job linted",
		slog.Int("errors", rep.Errors),
		slog.Int("warnings", rep.Warnings),
		slog.Bool("failed", rep.Failed),
	)
	return rep, nil
}

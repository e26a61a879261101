// Package linter statically verifies CI job definitions. It reports
// structural defects as errors and defaulting or style concerns as
// warnings, collecting every finding instead of stopping at the first.
package linter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rendis/joblint/pkg/schema"
)

// Verifier lints one job document. It owns its FindingLog; use one Verifier
// per document and do not share it between goroutines.
type Verifier struct {
	status   *schema.FindingLog
	resolver StageResolver
	logger   *slog.Logger

	adHocStages map[string]struct{}
}

// NewVerifier creates a Verifier. resolver may be nil, in which case every
// stage not declared in the document resolves to Unknown. logger may be nil.
func NewVerifier(resolver StageResolver, logger *slog.Logger) *Verifier {
	if resolver == nil {
		resolver = UnknownResolver
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{
		status:   schema.NewFindingLog(),
		resolver: resolver,
		logger:   logger,
	}
}

// Status returns the findings collected so far.
func (v *Verifier) Status() *schema.FindingLog {
	return v.status
}

// Verify lints the job document. It never fails: problems, including
// unexpected ones, are recorded in Status().
func (v *Verifier) Verify(job schema.Value) {
	v.VerifyContext(context.Background(), job)
}

// VerifyContext is Verify with a context handed to the stage resolver.
func (v *Verifier) VerifyContext(ctx context.Context, job schema.Value) {
	v.adHocStages = make(map[string]struct{})
	before := v.status.Len()

	defer func() {
		if r := recover(); r != nil {
			v.unexpected(ctx, fmt.Errorf("%v", r))
		}
		v.logger.DebugContext(ctx, "job verified",
			slog.Int("findings", v.status.Len()-before),
			slog.Int("warnings", v.status.Warnings()),
			slog.Int("errors", v.status.Errors()),
		)
	}()

	if err := v.verifyJob(ctx, job); err != nil {
		v.unexpected(ctx, err)
	}
}

func (v *Verifier) unexpected(ctx context.Context, err error) {
	v.logger.WarnContext(ctx, "verification aborted", slog.String("error", err.Error()))
	v.status.Error("An unexpected error occurred during the verification: " + err.Error())
}

// verifyJob returns an error only for faults that end the verification.
func (v *Verifier) verifyJob(ctx context.Context, job schema.Value) error {
	// Does the data even look like a job?
	if job.Kind() != schema.KindMapping {
		v.status.Error("Job is not a hash?")
	}
	if job.IsEmpty() {
		v.status.Error("Job is empty?")
	}

	has := func(key string) (bool, error) {
		if job.Kind() != schema.KindMapping {
			return false, fmt.Errorf("cannot look up key %q in a %s", key, job.Kind())
		}
		return job.Has(key), nil
	}

	ok, err := has("name")
	if err != nil {
		return err
	}
	if !ok {
		v.status.Error("The Job does not have a name.")
	}

	if ok, _ = has("version"); !ok {
		v.status.Warning("No version is defined for the Job. The default of 1.0.0 will be used.")
	}
	if ok, _ = has("environment"); !ok {
		v.status.Warning("No environment is defined. Defaults will apply.")
	}

	hasSequence, _ := has("sequence")
	if !hasSequence {
		v.status.Error("No sequence is defined.")
	}

	if job.Has("stages") {
		v.verifyStages(job.Get("stages"))
	}
	if hasSequence {
		return v.verifySequence(ctx, job.Get("sequence"))
	}
	return nil
}

// members yields what iterating a collection produces: the items of a
// sequence, or one [key, value] pair per mapping entry. Scalars yield nothing.
func members(v schema.Value) []schema.Value {
	if items, ok := v.Sequence(); ok {
		return items
	}
	m, ok := v.Mapping()
	if !ok {
		return nil
	}
	pairs := make([]schema.Value, 0, len(m))
	for _, k := range v.Keys() {
		pairs = append(pairs, schema.Sequence(schema.String(k), m[k]))
	}
	return pairs
}

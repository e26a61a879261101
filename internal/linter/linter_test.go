package linter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/joblint/pkg/schema"
)

const (
	msgNotHash      = "Job is not a hash?"
	msgEmpty        = "Job is empty?"
	msgNoName       = "The Job does not have a name."
	msgNoVersion    = "No version is defined for the Job. The default of 1.0.0 will be used."
	msgNoEnv        = "No environment is defined. Defaults will apply."
	msgNoSequence   = "No sequence is defined."
	msgUnexpected   = "An unexpected error occurred during the verification: "
	msgSeqNotArray  = "The Sequence is not defined as an Array."
	msgSeqEmpty     = "The Sequence is defined but empty?"
	msgStagesArray  = "Stages is not defined as an Array."
	msgStagesEmpty  = "Stages is defined but empty?"
	msgStageNotObj  = "A Stage is defined but is not an Object?"
	msgStageNoName  = "A Stage is defined without a name."
	msgEntryNotObj  = "A Stage in the Sequence is defined that is not an Object?"
	msgEntryNoStage = "A Stage in the Sequence does not name a Stage to run."
)

func warn(text string) schema.Finding { return schema.Finding{Kind: schema.FindingWarning, Text: text} }
func fail(text string) schema.Finding { return schema.Finding{Kind: schema.FindingError, Text: text} }
func entryNoVersion(stage string) string {
	return "A Stage in the Sequence does not specify a version for the Stage '" + stage + "'. The latest will always be used."
}
func mayNotExist(stage string) string {
	return "The Stage '" + stage + "' in the Sequence is not defined in this job and may not exist on the server."
}
func doesNotExist(stage string) string {
	return "The Stage '" + stage + "' in the Sequence is not defined in this job and does not exist on the server."
}

func verify(t *testing.T, doc any, resolver StageResolver) *schema.FindingLog {
	t.Helper()
	v := NewVerifier(resolver, nil)
	v.Verify(schema.FromAny(doc))
	return v.Status()
}

// job returns a minimal clean document that callers extend.
func job(extra map[string]any) map[string]any {
	doc := map[string]any{
		"name":        "example",
		"version":     "1.0.0",
		"environment": map[string]any{"os": "ubuntu"},
		"stages": []any{
			map[string]any{"name": "build", "version": "1.0.0", "steps": []any{"make"}},
		},
		"sequence": []any{map[string]any{"stage": "build"}},
	}
	for k, v := range extra {
		doc[k] = v
	}
	return doc
}

// --- Top level ---

func TestVerify_EmptyDocument(t *testing.T) {
	log := verify(t, map[string]any{}, nil)

	assert.Equal(t, []schema.Finding{
		fail(msgEmpty),
		fail(msgNoName),
		warn(msgNoVersion),
		warn(msgNoEnv),
		fail(msgNoSequence),
	}, log.Findings())
	assert.Equal(t, 3, log.Errors())
	assert.Equal(t, 2, log.Warnings())
	assert.NotContains(t, log.Findings(), fail(msgNotHash))
}

func TestVerify_CleanDocument(t *testing.T) {
	log := verify(t, job(nil), nil)

	assert.Equal(t, []schema.Finding{warn(entryNoVersion("build"))}, log.Findings())
	assert.Equal(t, 0, log.Errors())
}

func TestVerify_MissingName(t *testing.T) {
	doc := job(nil)
	delete(doc, "name")

	log := verify(t, doc, nil)
	assert.Contains(t, log.Findings(), fail(msgNoName))
	assert.GreaterOrEqual(t, log.Errors(), 1)
}

func TestVerify_MissingVersionAndEnvironmentAreWarningsOnly(t *testing.T) {
	doc := job(nil)
	delete(doc, "version")
	delete(doc, "environment")

	log := verify(t, doc, nil)
	assert.Contains(t, log.Findings(), warn(msgNoVersion))
	assert.Contains(t, log.Findings(), warn(msgNoEnv))
	assert.Equal(t, 0, log.Errors())
}

func TestVerify_MinimalDocumentScenario(t *testing.T) {
	log := verify(t, map[string]any{
		"name":     "x",
		"sequence": []any{map[string]any{"stage": "build"}},
		"stages":   []any{map[string]any{"name": "build", "steps": []any{"compile"}}},
	}, nil)

	assert.Equal(t, []schema.Finding{
		warn(msgNoVersion),
		warn(msgNoEnv),
		warn("No version is given for the Stage 'build'. The default of 1.0.0 will be used."),
		warn(entryNoVersion("build")),
	}, log.Findings())
	assert.Equal(t, 0, log.Errors())
}

func TestVerify_NonMappingDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  any
		want []schema.Finding
	}{
		{
			name: "sequence",
			doc:  []any{"a"},
			want: []schema.Finding{
				fail(msgNotHash),
				fail(msgUnexpected + `cannot look up key "name" in a sequence`),
			},
		},
		{
			name: "empty sequence",
			doc:  []any{},
			want: []schema.Finding{
				fail(msgNotHash),
				fail(msgEmpty),
				fail(msgUnexpected + `cannot look up key "name" in a sequence`),
			},
		},
		{
			name: "null",
			doc:  nil,
			want: []schema.Finding{
				fail(msgNotHash),
				fail(msgEmpty),
				fail(msgUnexpected + `cannot look up key "name" in a null`),
			},
		},
		{
			name: "number",
			doc:  42,
			want: []schema.Finding{
				fail(msgNotHash),
				fail(msgUnexpected + `cannot look up key "name" in a number`),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := verify(t, tt.doc, nil)
			assert.Equal(t, tt.want, log.Findings())
			assert.Equal(t, 0, log.Warnings())
		})
	}
}

// --- Stages ---

func TestVerify_Stages(t *testing.T) {
	tests := []struct {
		name   string
		stages any
		want   []schema.Finding
	}{
		{
			name:   "empty list",
			stages: []any{},
			want:   []schema.Finding{warn(msgStagesEmpty)},
		},
		{
			name:   "not a list",
			stages: "build",
			want:   []schema.Finding{fail(msgStagesArray)},
		},
		{
			name:   "null",
			stages: nil,
			want:   []schema.Finding{fail(msgStagesArray), warn(msgStagesEmpty)},
		},
		{
			name:   "mapping iterates as pairs",
			stages: map[string]any{"a": 1, "b": 2},
			want:   []schema.Finding{fail(msgStagesArray), fail(msgStageNotObj), fail(msgStageNotObj)},
		},
		{
			name:   "item not an object",
			stages: []any{"build"},
			want:   []schema.Finding{fail(msgStageNotObj)},
		},
		{
			name:   "item without name",
			stages: []any{map[string]any{"steps": []any{"x"}}},
			want:   []schema.Finding{fail(msgStageNoName)},
		},
		{
			name:   "name only",
			stages: []any{map[string]any{"name": "lint"}},
			want: []schema.Finding{
				fail("The Stage 'lint' is defined but empty."),
				fail("The Stage 'lint' does not define any Steps."),
			},
		},
		{
			name:   "no steps",
			stages: []any{map[string]any{"name": "lint", "version": "2.0.0"}},
			want:   []schema.Finding{fail("The Stage 'lint' does not define any Steps.")},
		},
		{
			name:   "empty steps without version",
			stages: []any{map[string]any{"name": "lint", "steps": []any{}}},
			want: []schema.Finding{
				fail("The Stage 'lint' defines an empty set of Steps."),
				warn("No version is given for the Stage 'lint'. The default of 1.0.0 will be used."),
			},
		},
		{
			name:   "null steps",
			stages: []any{map[string]any{"name": "lint", "steps": nil, "version": "1"}},
			want:   []schema.Finding{fail("The Stage 'lint' defines an empty set of Steps.")},
		},
		{
			name:   "numeric name is interpolated",
			stages: []any{map[string]any{"name": 7, "version": "1"}},
			want:   []schema.Finding{fail("The Stage '7' does not define any Steps.")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The sequence references a stage none of these cases declare,
			// so drop its findings before comparing.
			doc := job(map[string]any{
				"stages":   tt.stages,
				"sequence": []any{map[string]any{"stage": "external"}},
			})
			log := verify(t, doc, ResolverFunc(func(context.Context, string) Existence { return Exists }))

			got := log.Findings()
			require.NotEmpty(t, got)
			assert.Equal(t, warn(entryNoVersion("external")), got[len(got)-1])
			assert.Equal(t, tt.want, got[:len(got)-1])
		})
	}
}

func TestVerify_StageWithoutStepsReportsOnlyMissingSteps(t *testing.T) {
	doc := job(map[string]any{
		"stages": []any{map[string]any{"name": "build", "version": "1.0.0", "image": "golang"}},
	})
	log := verify(t, doc, nil)

	assert.Contains(t, log.Findings(), fail("The Stage 'build' does not define any Steps."))
	assert.NotContains(t, log.Findings(), fail("The Stage 'build' defines an empty set of Steps."))
}

func TestVerify_BrokenStageStillSatisfiesSequence(t *testing.T) {
	doc := job(map[string]any{
		"stages": []any{map[string]any{"name": "build"}},
	})
	log := verify(t, doc, nil)

	assert.NotContains(t, log.Findings(), warn(mayNotExist("build")))
}

// --- Sequence ---

func TestVerify_Sequence(t *testing.T) {
	tests := []struct {
		name     string
		sequence any
		want     []schema.Finding
	}{
		{
			name:     "empty",
			sequence: []any{},
			want:     []schema.Finding{fail(msgSeqEmpty)},
		},
		{
			name:     "not a list",
			sequence: "build",
			want:     []schema.Finding{fail(msgSeqNotArray)},
		},
		{
			name:     "null",
			sequence: nil,
			want:     []schema.Finding{fail(msgSeqNotArray), fail(msgSeqEmpty)},
		},
		{
			name:     "mapping iterates as pairs",
			sequence: map[string]any{"stage": "build"},
			want:     []schema.Finding{fail(msgSeqNotArray), fail(msgEntryNotObj)},
		},
		{
			name:     "entry not an object",
			sequence: []any{"build", map[string]any{"stage": "build"}},
			want:     []schema.Finding{fail(msgEntryNotObj), warn(entryNoVersion("build"))},
		},
		{
			name:     "entry without stage",
			sequence: []any{map[string]any{"on_success": "build"}},
			want:     []schema.Finding{fail(msgEntryNoStage)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := verify(t, job(map[string]any{"sequence": tt.sequence}), nil)
			assert.Equal(t, tt.want, log.Findings())
		})
	}
}

func TestVerify_UndeclaredDependenciesCollapse(t *testing.T) {
	doc := job(map[string]any{
		"sequence": []any{
			map[string]any{"stage": "build", "on_success": "deploy", "on_failure": "notify"},
			map[string]any{"stage": "Deploy", "on_failure": "NOTIFY"},
			map[string]any{"stage": "deploy"},
		},
	})
	log := verify(t, doc, nil)

	assert.Equal(t, []schema.Finding{
		warn(entryNoVersion("build")),
		warn(entryNoVersion("Deploy")),
		warn(entryNoVersion("deploy")),
		warn(mayNotExist("deploy")),
		warn(mayNotExist("notify")),
	}, log.Findings())
}

func TestVerify_ResolverOutcomes(t *testing.T) {
	catalog := map[string]Existence{"deploy": Exists, "notify": NotExist}
	resolver := ResolverFunc(func(_ context.Context, name string) Existence {
		return catalog[name]
	})

	doc := job(map[string]any{
		"sequence": []any{
			map[string]any{"stage": "build", "on_success": "deploy", "on_failure": "notify"},
			map[string]any{"stage": "cleanup"},
		},
	})
	log := verify(t, doc, resolver)

	assert.Equal(t, []schema.Finding{
		warn(entryNoVersion("build")),
		warn(entryNoVersion("cleanup")),
		fail(doesNotExist("notify")),
		warn(mayNotExist("cleanup")),
	}, log.Findings())
	assert.Equal(t, 1, log.Errors())
}

func TestVerify_ResolverNotAskedForDeclaredStages(t *testing.T) {
	var asked []string
	resolver := ResolverFunc(func(_ context.Context, name string) Existence {
		asked = append(asked, name)
		return Exists
	})

	verify(t, job(map[string]any{
		"sequence": []any{map[string]any{"stage": "build", "on_success": "publish"}},
	}), resolver)

	assert.Equal(t, []string{"publish"}, asked)
}

func TestVerify_CaseAsymmetry(t *testing.T) {
	doc := job(map[string]any{
		"stages":   []any{map[string]any{"name": "Build", "version": "1", "steps": []any{"make"}}},
		"sequence": []any{map[string]any{"stage": "build"}},
	})
	log := verify(t, doc, nil)

	assert.Equal(t, []schema.Finding{
		warn(entryNoVersion("build")),
		warn(mayNotExist("build")),
	}, log.Findings())
}

func TestVerify_UppercaseReferenceToLowercaseStage(t *testing.T) {
	doc := job(map[string]any{
		"sequence": []any{map[string]any{"stage": "BUILD"}},
	})
	log := verify(t, doc, nil)

	assert.Equal(t, []schema.Finding{warn(entryNoVersion("BUILD"))}, log.Findings())
}

func TestVerify_EmptySequenceSkipsCrossReferences(t *testing.T) {
	called := false
	resolver := ResolverFunc(func(context.Context, string) Existence {
		called = true
		return Unknown
	})

	log := verify(t, job(map[string]any{"sequence": []any{}}), resolver)

	assert.Contains(t, log.Findings(), fail(msgSeqEmpty))
	assert.False(t, called)
}

// --- Unexpected faults ---

func TestVerify_NonStringReferenceStopsVerification(t *testing.T) {
	doc := job(map[string]any{
		"sequence": []any{
			map[string]any{"stage": "build", "on_success": 12},
			map[string]any{"stage": "never-checked"},
		},
	})
	log := verify(t, doc, nil)

	assert.Equal(t, []schema.Finding{
		warn(entryNoVersion("build")),
		fail(msgUnexpected + `on_success reference "12" is a number, not a stage name`),
	}, log.Findings())
}

func TestVerify_PanickingResolverIsRecorded(t *testing.T) {
	resolver := ResolverFunc(func(context.Context, string) Existence {
		panic("registry unavailable")
	})

	var log *schema.FindingLog
	require.NotPanics(t, func() {
		log = verify(t, job(map[string]any{
			"sequence": []any{map[string]any{"stage": "deploy"}},
		}), resolver)
	})

	assert.Equal(t, []schema.Finding{
		warn(entryNoVersion("deploy")),
		fail(msgUnexpected + "registry unavailable"),
	}, log.Findings())
}

// --- Determinism ---

func TestVerify_IdempotentAcrossVerifiers(t *testing.T) {
	doc := map[string]any{
		"stages": map[string]any{"x": 1, "y": []any{}},
		"sequence": []any{
			map[string]any{"stage": "a", "on_failure": "b"},
			"junk",
			map[string]any{"stage": "B"},
		},
	}

	first := verify(t, doc, nil)
	second := verify(t, doc, nil)

	assert.Equal(t, first.Findings(), second.Findings())
	assert.Equal(t, first.Warnings(), second.Warnings())
	assert.Equal(t, first.Errors(), second.Errors())
}

func TestVerify_ResetsAdHocStagesBetweenCalls(t *testing.T) {
	v := NewVerifier(nil, nil)
	v.Verify(schema.FromAny(job(nil)))
	v.Verify(schema.FromAny(job(map[string]any{"stages": []any{}})))

	assert.Contains(t, v.Status().Findings(), warn(mayNotExist("build")))
}

package validation

import "github.com/rendis/joblint/pkg/schema"

// Validator runs the strict structural pass over a decoded job document.
// Its findings are advisory and never reach the verifier's FindingLog.
type Validator interface {
	ValidateDocument(doc schema.Value) *schema.ValidationResult
}

// JobValidator orchestrates the strict pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (duplicate declarations, dangling branch targets)
// 3. Graph (branch cycles)
type JobValidator struct {
	jsonSchema *JobSchemaValidator
}

// NewJobValidator creates a JobValidator with the embedded job schema compiled.
func NewJobValidator() (*JobValidator, error) {
	jsv, err := NewJobSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &JobValidator{jsonSchema: jsv}, nil
}

// ValidateDocument runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: semantic and graph stages are skipped.
func (jv *JobValidator) ValidateDocument(doc schema.Value) *schema.ValidationResult {
	result := jv.jsonSchema.ValidateDocument(doc)
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(doc))
	result.Merge(validateGraph(doc))
	return result
}

// ValidateCustom checks doc against a caller-supplied JSON Schema instead of
// the embedded one. Semantic and graph stages are not run.
func (jv *JobValidator) ValidateCustom(doc schema.Value, schemaBytes []byte) (*schema.ValidationResult, error) {
	return jv.jsonSchema.ValidateCustom(doc, schemaBytes)
}

package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rendis/joblint/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const jobSchemaURL = "https://joblint.dev/schemas/job.json"

// jobSchemaJSON describes a well-formed job document.
const jobSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://joblint.dev/schemas/job.json",
  "type": "object",
  "required": ["name", "sequence"],
  "properties": {
    "name": {
      "type": "string",
      "minLength": 1
    },
    "version": {
      "type": "string",
      "pattern": "^[0-9]+\\.[0-9]+\\.[0-9]+$"
    },
    "environment": {
      "type": "object"
    },
    "secrets": {
      "type": "object"
    },
    "stages": {
      "type": "array",
      "items": { "$ref": "#/$defs/stage" }
    },
    "sequence": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/entry" }
    }
  },
  "$defs": {
    "stage": {
      "type": "object",
      "required": ["name", "steps"],
      "properties": {
        "name": {
          "type": "string",
          "minLength": 1
        },
        "version": {
          "type": "string",
          "pattern": "^[0-9]+\\.[0-9]+\\.[0-9]+$"
        },
        "steps": {
          "type": "array",
          "minItems": 1,
          "items": { "$ref": "#/$defs/step" }
        }
      }
    },
    "step": {
      "type": "object",
      "required": ["action"],
      "properties": {
        "action": {
          "type": "string",
          "minLength": 1
        }
      }
    },
    "entry": {
      "type": "object",
      "required": ["stage"],
      "properties": {
        "stage": {
          "type": "string",
          "minLength": 1
        },
        "on_success": { "type": "string" },
        "on_failure": { "type": "string" }
      }
    }
  }
}`

// JobSchemaValidator validates job documents against JSON Schema Draft 2020-12.
// It is safe for concurrent use.
type JobSchemaValidator struct {
	jobSchema *jsonschema.Schema

	// mu guards the cache of caller-supplied schemas.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJobSchemaValidator creates a JobSchemaValidator with the job schema pre-compiled.
func NewJobSchemaValidator() (*JobSchemaValidator, error) {
	c := newCompiler()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(jobSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal job schema: %w", err)
	}
	if err := c.AddResource(jobSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add job schema resource: %w", err)
	}

	compiled, err := c.Compile(jobSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile job schema: %w", err)
	}

	return &JobSchemaValidator{
		jobSchema: compiled,
		cache:     make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateDocument checks doc against the embedded job schema.
func (v *JobSchemaValidator) ValidateDocument(doc schema.Value) *schema.ValidationResult {
	return validateAgainst(v.jobSchema, doc)
}

// ValidateCustom checks doc against schemaBytes. The compiled schema is cached
// for subsequent calls with the same bytes.
func (v *JobSchemaValidator) ValidateCustom(doc schema.Value, schemaBytes []byte) (*schema.ValidationResult, error) {
	if len(schemaBytes) == 0 {
		return v.ValidateDocument(doc), nil
	}

	compiled, err := v.getOrCompile(schemaBytes)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid job schema").WithCause(err)
	}
	return validateAgainst(compiled, doc), nil
}

func validateAgainst(s *jsonschema.Schema, doc schema.Value) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	inst, err := toJSONValue(doc)
	if err != nil {
		result.AddError("/", schema.ErrCodeValidation, fmt.Sprintf("document cannot be serialized: %v", err))
		return result
	}

	if err := s.Validate(inst); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			result.AddError("/", schema.ErrCodeValidation, err.Error())
			return result
		}
		for _, issue := range collectViolations(verr) {
			result.AddError(issue.Path, schema.ErrCodeValidation, issue.Message)
		}
	}
	return result
}

// getOrCompile returns a cached compiled schema or compiles and caches a new one.
func (v *JobSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock.
	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Each custom schema gets its own compiler and URL so resources never collide.
	url := fmt.Sprintf("joblint://custom-schema/%d", len(v.cache))
	c := newCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toJSONValue round-trips a document through JSON so that numbers become
// json.Number, which the jsonschema library requires.
func toJSONValue(doc schema.Value) (any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

type violation struct {
	Path    string
	Message string
}

// collectViolations walks a ValidationError tree and collects the leaves with
// their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []violation {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []violation{{Path: loc, Message: verr.Error()}}
	}

	var out []violation
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}

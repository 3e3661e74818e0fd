package slo

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Validator checks SLO definitions against the JSON schema and the semantic
// rules the schema cannot express.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a new validator with the given schema file.
func NewValidator(schemaPath string) (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateDirectory loads and validates all SLO files in a directory.
func (v *Validator) ValidateDirectory(dirPath string) []ValidationError {
	sloWithFiles, loadErrors := LoadFromDirectory(dirPath)

	var allErrors []ValidationError
	allErrors = append(allErrors, loadErrors...)

	if len(sloWithFiles) == 0 {
		return allErrors
	}

	for _, sloWithFile := range sloWithFiles {
		schemaErrors := v.validateSchema(sloWithFile.File, sloWithFile.SLO)
		allErrors = append(allErrors, schemaErrors...)
	}

	allErrors = append(allErrors, ValidateSemantics(sloWithFiles)...)

	return allErrors
}

// validateSchema validates a single SLO against the JSON schema.
func (v *Validator) validateSchema(file string, s *SLO) []ValidationError {
	var errors []ValidationError

	yamlBytes, err := yaml.Marshal(s)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to marshal SLO: %v", err),
		})
		return errors
	}

	var jsonData interface{}
	if err := yaml.Unmarshal(yamlBytes, &jsonData); err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to convert to JSON: %v", err),
		})
		return errors
	}

	if err := v.schema.Validate(jsonData); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			errors = append(errors, extractSchemaErrors(file, validationErr)...)
		} else {
			errors = append(errors, ValidationError{
				File:    file,
				Message: err.Error(),
			})
		}
	}

	return errors
}

// extractSchemaErrors converts JSON schema validation errors to ValidationErrors.
func extractSchemaErrors(file string, err *jsonschema.ValidationError) []ValidationError {
	var errors []ValidationError

	path := strings.Join(err.InstanceLocation, ".")
	if path == "" {
		path = "(root)"
	}

	errors = append(errors, ValidationError{
		File:    file,
		Path:    path,
		Message: err.Error(),
	})

	for _, cause := range err.Causes {
		errors = append(errors, extractSchemaErrors(file, cause)...)
	}

	return errors
}

// ValidateSemantics applies the rules beyond JSON schema: the target ratio
// bounds, window ordering inside burn rate rules, and name uniqueness.
func ValidateSemantics(sloWithFiles []SLOWithFile) []ValidationError {
	var errors []ValidationError

	nameSeen := make(map[string]string)
	for _, sloWithFile := range sloWithFiles {
		name := sloWithFile.SLO.Metadata.Name
		if prevFile, exists := nameSeen[name]; exists {
			errors = append(errors, ValidationError{
				File:    sloWithFile.File,
				Path:    "metadata.name",
				Message: fmt.Sprintf("duplicate name %q (also in %s)", name, filepath.Base(prevFile)),
			})
		} else {
			nameSeen[name] = sloWithFile.File
		}

		errors = append(errors, validateDefinition(sloWithFile.File, sloWithFile.SLO)...)
	}

	return errors
}

// validateDefinition checks the numeric and temporal invariants of one SLO.
func validateDefinition(file string, s *SLO) []ValidationError {
	var errors []ValidationError

	if s.Spec.TargetRatio <= 0 || s.Spec.TargetRatio >= 1 {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    "spec.targetRatio",
			Message: fmt.Sprintf("must be strictly between 0 and 1, got %v", s.Spec.TargetRatio),
		})
	}

	window, err := ParseDuration(s.Spec.Window)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    "spec.window",
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
		return errors
	}
	if window <= 0 {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    "spec.window",
			Message: "must be greater than zero",
		})
	}

	if _, err := ParseDuration(s.Spec.EvaluationInterval); err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    "spec.evaluationInterval",
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}

	for i, rule := range s.Spec.BurnRateRules {
		rulePath := fmt.Sprintf("spec.burnRateRules[%d]", i)

		short, err := ParseDuration(rule.ShortWindow)
		if err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    rulePath + ".shortWindow",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
			continue
		}

		long, err := ParseDuration(rule.LongWindow)
		if err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    rulePath + ".longWindow",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
			continue
		}

		if short >= long {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    rulePath,
				Message: fmt.Sprintf("shortWindow (%s) must be less than longWindow (%s)", rule.ShortWindow, rule.LongWindow),
			})
		}

		if long > window {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    rulePath + ".longWindow",
				Message: fmt.Sprintf("longWindow (%s) must not exceed the SLO window (%s)", rule.LongWindow, s.Spec.Window),
			})
		}

		if rule.Threshold <= 1 {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    rulePath + ".threshold",
				Message: fmt.Sprintf("must be greater than 1, got %v", rule.Threshold),
			})
		}

		if !rule.Severity.Valid() {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    rulePath + ".severity",
				Message: fmt.Sprintf("unknown severity %q", rule.Severity),
			})
		}
	}

	return errors
}

package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nao1215/deepcheck/internal/model"
)

// SchemaURL identifies the embedded analysis report schema.
const SchemaURL = "https://github.com/nao1215/deepcheck/schema/analysis-report-v1.schema.json"

// ErrInvalidReport is returned when a document does not match the report schema.
var ErrInvalidReport = errors.New("report does not match schema")

//go:embed schema/analysis-report-v1.schema.json
var reportSchema []byte

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(SchemaURL, bytes.NewReader(reportSchema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile(SchemaURL)
})

// Schema returns the raw JSON Schema of the analysis report.
func Schema() []byte {
	return bytes.Clone(reportSchema)
}

// Validate checks a JSON document against the analysis report schema.
func Validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	return nil
}

// ValidateReport marshals report and checks it against the schema.
func ValidateReport(report *model.AnalysisReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return Validate(data)
}

package docpipe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
	"github.com/samber/lo"
)

// BuildFunc builds an operation from the results of earlier steps
type BuildFunc func(ctx context.Context, engine *Engine) (model.Operation, error)

// Step is one unit of a scenario. Exactly one of Operation and Build is set.
type Step struct {
	Name string
	// Banner is written to the output before the step runs
	Banner    string
	Operation *model.Operation
	Build     BuildFunc
	// Report is a text/template with sprig functions rendered against the step's ReportData
	Report string
}

// ReportData is what a step's report template is rendered against
type ReportData struct {
	Name       string
	Kind       model.Kind
	Collection string
	Counted    *Counted
	// Counts holds the counts a Counted summary reported, keyed matched, modified, inserted,
	// deleted and upserted
	Counts map[string]int64
	// Rows holds every row of a Rows summary
	Rows model.Documents
	// Scalar is the value of a Scalar summary
	Scalar any
	// Document is the document of a Scalar summary, if any
	Document *model.Document
}

// StepResult is the outcome of a step
type StepResult struct {
	Name   string
	Result Result
	// Output is the rendered report, or the failure
	Output string
}

// Runner executes steps in order against an engine
type Runner struct {
	engine *Engine
	out    io.Writer
	logger Logger
}

// NewRunner returns a runner writing report lines to out
func NewRunner(engine *Engine, out io.Writer, logger Logger) *Runner {
	if logger == nil {
		logger = NopLogger()
	}
	return &Runner{engine: engine, out: out, logger: logger}
}

// Run executes the steps strictly in order. A failed step is logged and reported, then the run
// continues with the next step. Every step has a result.
func (r *Runner) Run(ctx context.Context, steps []Step) []StepResult {
	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		if step.Banner != "" {
			fmt.Fprintln(r.out, step.Banner)
		}
		result := r.runStep(ctx, step)
		if result.Output != "" {
			fmt.Fprintln(r.out, result.Output)
		}
		results = append(results, result)
	}
	return results
}

func (r *Runner) runStep(ctx context.Context, step Step) StepResult {
	logger := r.logger.With(map[string]any{"step": step.Name})
	op, err := r.operation(ctx, step)
	if err != nil {
		logger.Error(ctx, "failed to build step", err, nil)
		return StepResult{Name: step.Name, Result: Result{Err: err}, Output: failure(step.Name, err)}
	}
	result := r.engine.Execute(ctx, op)
	if result.Err != nil {
		logger.Error(ctx, "step failed", result.Err, map[string]any{"kind": op.Kind, "collection": op.Collection})
		return StepResult{Name: step.Name, Result: result, Output: failure(step.Name, result.Err)}
	}
	data, err := reportData(ctx, step.Name, result)
	if err != nil {
		logger.Error(ctx, "failed to read step results", err, nil)
		result.Err = err
		return StepResult{Name: step.Name, Result: result, Output: failure(step.Name, err)}
	}
	output, err := render(step, data)
	if err != nil {
		logger.Warn(ctx, "failed to render step report", map[string]any{"error": err.Error()})
		output = defaultReport(data)
	}
	logger.Info(ctx, "step completed", map[string]any{"kind": op.Kind, "collection": op.Collection})
	return StepResult{Name: step.Name, Result: result, Output: output}
}

func (r *Runner) operation(ctx context.Context, step Step) (model.Operation, error) {
	switch {
	case step.Build != nil && step.Operation != nil:
		return model.Operation{}, errors.Validationf("step", "step '%s' sets both an operation and a builder", step.Name)
	case step.Build != nil:
		return step.Build(ctx, r.engine)
	case step.Operation != nil:
		return *step.Operation, nil
	}
	return model.Operation{}, errors.Validationf("step", "step '%s' has no operation", step.Name)
}

// reportData reads the result's summary. Rows are drained and cached on the summary.
func reportData(ctx context.Context, name string, result Result) (ReportData, error) {
	data := ReportData{Name: name, Kind: result.Kind, Collection: result.Collection}
	switch s := result.Summary.(type) {
	case *Counted:
		data.Counted = s
		data.Counts = s.Map()
	case *Rows:
		rows, err := s.All(ctx)
		if err != nil {
			return data, err
		}
		if rows == nil {
			rows = model.Documents{}
		}
		data.Rows = rows
	case *Scalar:
		data.Scalar = s.Value
		data.Document = s.Document()
	}
	return data, nil
}

func render(step Step, data ReportData) (string, error) {
	if step.Report == "" {
		return defaultReport(data), nil
	}
	tmpl, err := template.New(step.Name).Funcs(sprig.TxtFuncMap()).Parse(step.Report)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func defaultReport(data ReportData) string {
	switch {
	case data.Counted != nil:
		return fmt.Sprintf("%s: %s", data.Name, data.Counted.String())
	case data.Rows != nil:
		lines := []string{fmt.Sprintf("%s: %d rows", data.Name, len(data.Rows))}
		data.Rows.ForEach(func(next *model.Document, i int) {
			lines = append(lines, flatLine(next))
		})
		return strings.Join(lines, "\n")
	case data.Document != nil:
		return fmt.Sprintf("%s: %s", data.Name, data.Document.String())
	case data.Scalar != nil:
		return fmt.Sprintf("%s: %v", data.Name, data.Scalar)
	}
	return fmt.Sprintf("%s: no result", data.Name)
}

// flatLine renders a document as space separated path=value pairs in path order
func flatLine(doc *model.Document) string {
	flat, err := doc.Flatten()
	if err != nil {
		return doc.String()
	}
	keys := lo.Keys(flat)
	sort.Strings(keys)
	return strings.Join(lo.Map(keys, func(k string, _ int) string {
		return fmt.Sprintf("%s=%v", k, flat[k])
	}), " ")
}

func failure(name string, err error) string {
	return fmt.Sprintf("%s: error: %s", name, err.Error())
}

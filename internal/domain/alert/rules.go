// Package alert evaluates operator-defined discrepancy rules against
// reconciliation summaries. Rules are CEL expressions compiled once at
// startup and evaluated per SKU.
package alert

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"stocktally/internal/core/apperror"
	"stocktally/internal/domain/reconcile"
	"stocktally/pkg/logger"
)

// Rule is a named boolean CEL expression over one summary.
// Available variables: sku (string), expected, actual, discrepancy (int).
type Rule struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
}

// Alert is one rule firing for one SKU.
type Alert struct {
	Rule        string `json:"rule"`
	SKU         string `json:"sku"`
	ProductName string `json:"productName"`
	Expected    int64  `json:"expected"`
	Actual      int64  `json:"actual"`
	Discrepancy int64  `json:"discrepancy"`
}

type compiledRule struct {
	name string
	prg  cel.Program
}

// Evaluator holds compiled rules.
type Evaluator struct {
	rules []compiledRule
}

// NewEvaluator compiles the rule set. A rule that fails to compile or does
// not produce a boolean is a configuration error and fails startup.
func NewEvaluator(rules []Rule) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("sku", cel.StringType),
		cel.Variable("expected", cel.IntType),
		cel.Variable("actual", cel.IntType),
		cel.Variable("discrepancy", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create rule environment: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return nil, apperror.NewValidation("alert rule requires a name")
		}

		ast, iss := env.Compile(r.Expr)
		if iss != nil && iss.Err() != nil {
			return nil, apperror.NewValidation("alert rule does not compile").
				WithDetail("rule", r.Name).
				WithCause(iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, apperror.NewValidation("alert rule must evaluate to a boolean").
				WithDetail("rule", r.Name).
				WithDetail("outputType", ast.OutputType().String())
		}

		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("build program for rule %q: %w", r.Name, err)
		}
		compiled = append(compiled, compiledRule{name: r.Name, prg: prg})
	}

	return &Evaluator{rules: compiled}, nil
}

// Rules returns the configured rule names.
func (e *Evaluator) Rules() []string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.name)
	}
	return names
}

// Evaluate runs every rule against every summary. A rule that errors at
// evaluation time (e.g. integer overflow) is logged and skipped for that SKU;
// the rest of the pass continues.
func (e *Evaluator) Evaluate(ctx context.Context, summaries []reconcile.Summary) []Alert {
	var alerts []Alert
	for _, s := range summaries {
		vars := map[string]any{
			"sku":         s.SKU,
			"expected":    s.ExpectedStock,
			"actual":      s.ActualStock,
			"discrepancy": s.Discrepancy,
		}

		for _, r := range e.rules {
			out, _, err := r.prg.Eval(vars)
			if err != nil {
				logger.Warn(ctx, "alert rule evaluation failed",
					"rule", r.name,
					"sku", s.SKU,
					"error", err,
				)
				continue
			}
			fired, ok := out.Value().(bool)
			if !ok || !fired {
				continue
			}

			alerts = append(alerts, Alert{
				Rule:        r.name,
				SKU:         s.SKU,
				ProductName: s.ProductName,
				Expected:    s.ExpectedStock,
				Actual:      s.ActualStock,
				Discrepancy: s.Discrepancy,
			})
		}
	}
	return alerts
}

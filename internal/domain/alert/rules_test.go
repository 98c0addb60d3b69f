package alert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocktally/internal/domain/reconcile"
)

func testRules(t *testing.T, rules ...Rule) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(rules)
	require.NoError(t, err)
	return e
}

func TestNewEvaluator_RejectsBadRules(t *testing.T) {
	_, err := NewEvaluator([]Rule{{Name: "broken", Expr: "discrepancy >"}})
	assert.Error(t, err)

	_, err = NewEvaluator([]Rule{{Name: "not-bool", Expr: "discrepancy + 1"}})
	assert.Error(t, err)

	_, err = NewEvaluator([]Rule{{Expr: "discrepancy != 0"}})
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	e := testRules(t,
		Rule{Name: "any-discrepancy", Expr: "discrepancy != 0"},
		Rule{Name: "large-shortage", Expr: "discrepancy < -10"},
		Rule{Name: "milk-watch", Expr: `sku == "SKU-001" && actual < expected`},
	)

	summaries := []reconcile.Summary{
		{SKU: "SKU-001", ProductName: "Milk 1L", ExpectedStock: 50, ActualStock: 30, Discrepancy: -20},
		{SKU: "SKU-002", ProductName: "Bread", ExpectedStock: 10, ActualStock: 10, Discrepancy: 0},
		{SKU: "SKU-003", ProductName: "Eggs", ExpectedStock: 12, ActualStock: 11, Discrepancy: -1},
	}

	alerts := e.Evaluate(context.Background(), summaries)

	fired := map[string][]string{}
	for _, a := range alerts {
		fired[a.SKU] = append(fired[a.SKU], a.Rule)
	}

	assert.ElementsMatch(t, []string{"any-discrepancy", "large-shortage", "milk-watch"}, fired["SKU-001"])
	assert.Empty(t, fired["SKU-002"])
	assert.ElementsMatch(t, []string{"any-discrepancy"}, fired["SKU-003"])
}

func TestEvaluate_NoRules(t *testing.T) {
	e := testRules(t)
	alerts := e.Evaluate(context.Background(), []reconcile.Summary{
		{SKU: "SKU-001", Discrepancy: -20},
	})
	assert.Empty(t, alerts)
}

func TestRules_Names(t *testing.T) {
	e := testRules(t, Rule{Name: "a", Expr: "true"}, Rule{Name: "b", Expr: "false"})
	assert.Equal(t, []string{"a", "b"}, e.Rules())
}

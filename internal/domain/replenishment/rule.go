// Package replenishment flags materials that need to be reordered.
// The reorder condition is a CEL expression over the material's stock levels.
package replenishment

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"packcore/internal/domain/catalogs/material"
)

// DefaultRule flags a material at or under its reorder point.
const DefaultRule = "reorder_point > 0.0 && stock_qty <= reorder_point"

// Rule is a compiled reorder condition.
//
// Variables: stock_qty, min_stock, reorder_point (double, in the material's
// unit), admin_unit_cost (double) and code (string).
type Rule struct {
	expr string
	prg  cel.Program
}

// CompileRule parses and type-checks expr. An empty expr selects DefaultRule.
func CompileRule(expr string) (*Rule, error) {
	if expr == "" {
		expr = DefaultRule
	}

	env, err := cel.NewEnv(
		cel.Variable("stock_qty", cel.DoubleType),
		cel.Variable("min_stock", cel.DoubleType),
		cel.Variable("reorder_point", cel.DoubleType),
		cel.Variable("admin_unit_cost", cel.DoubleType),
		cel.Variable("code", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile reorder rule %q: %w", expr, iss.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build reorder rule %q: %w", expr, err)
	}

	r := &Rule{expr: expr, prg: prg}
	if _, err := r.Evaluate(material.NewMaterial("probe", "probe", "un")); err != nil {
		return nil, err
	}
	return r, nil
}

// String returns the source expression.
func (r *Rule) String() string { return r.expr }

// Evaluate reports whether m needs replenishment.
func (r *Rule) Evaluate(m *material.Material) (bool, error) {
	out, _, err := r.prg.Eval(map[string]any{
		"stock_qty":       m.StockQty.Float64(),
		"min_stock":       m.MinStock.Float64(),
		"reorder_point":   m.ReorderPoint.Float64(),
		"admin_unit_cost": m.AdminUnitCost.InexactFloat64(),
		"code":            m.Code,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate reorder rule %q: %w", r.expr, err)
	}

	flag, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("reorder rule %q must return bool, got %T", r.expr, out.Value())
	}
	return flag, nil
}

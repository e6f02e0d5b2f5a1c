package adapters

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"github.com/qagraph/qagraph/pkg/state"
)

// CalculatorAdapter evaluates an arithmetic expression directly instead
// of round-tripping through an LLM or external service.
//
// No expression-evaluation library appears anywhere in the retrieval
// pack, so this walks the standard library's own Go expression parser
// (go/parser) over the query and evaluates the resulting AST directly —
// arithmetic expressions are valid Go expressions, and reusing the
// compiler's own grammar avoids hand-rolling a second parser for a
// small, well-specified language the standard library already parses.
type CalculatorAdapter struct{}

// NewCalculatorAdapter builds a CalculatorAdapter.
func NewCalculatorAdapter() *CalculatorAdapter { return &CalculatorAdapter{} }

// Kind implements Adapter.
func (a *CalculatorAdapter) Kind() Kind { return KindCalculator }

// Configured implements Adapter: arithmetic evaluation needs no
// external credentials.
func (a *CalculatorAdapter) Configured() bool { return true }

// Run implements Adapter, evaluating query as an arithmetic expression.
func (a *CalculatorAdapter) Run(_ context.Context, query string, _ Options) Result {
	expr, err := parser.ParseExpr(query)
	if err != nil {
		return Result{Err: fmt.Errorf("calculator: parse %q: %w", query, err)}
	}
	value, err := evalExpr(expr)
	if err != nil {
		return Result{Err: fmt.Errorf("calculator: evaluate %q: %w", query, err)}
	}
	return Result{Evidence: []state.Evidence{{
		Text:   strconv.FormatFloat(value, 'g', -1, 64),
		Source: "calculator",
	}}}
}

func evalExpr(expr ast.Expr) (float64, error) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind != token.INT && e.Kind != token.FLOAT {
			return 0, fmt.Errorf("unsupported literal kind %v", e.Kind)
		}
		return strconv.ParseFloat(e.Value, 64)

	case *ast.ParenExpr:
		return evalExpr(e.X)

	case *ast.UnaryExpr:
		x, err := evalExpr(e.X)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case token.SUB:
			return -x, nil
		case token.ADD:
			return x, nil
		default:
			return 0, fmt.Errorf("unsupported unary operator %v", e.Op)
		}

	case *ast.BinaryExpr:
		x, err := evalExpr(e.X)
		if err != nil {
			return 0, err
		}
		y, err := evalExpr(e.Y)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return x / y, nil
		default:
			return 0, fmt.Errorf("unsupported binary operator %v", e.Op)
		}

	default:
		return 0, fmt.Errorf("unsupported expression %T", expr)
	}
}

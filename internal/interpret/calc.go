package interpret

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// Evaluate computes a plain arithmetic expression (+ - * / and
// parentheses) without ever executing user input. The expression is
// parsed into an AST and only whitelisted node types are walked; anything
// else (identifiers, calls, indexing) is rejected. Comma decimals are
// accepted.
func Evaluate(expr string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(expr), ",", ".")
	if cleaned == "" {
		return 0, fmt.Errorf("Evaluate: empty expression")
	}

	tree, err := parser.ParseExpr(cleaned)
	if err != nil {
		return 0, fmt.Errorf("Evaluate: parse %q: %w", expr, err)
	}
	return evalNode(tree)
}

func evalNode(node ast.Expr) (float64, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, fmt.Errorf("literal %q is not numeric", n.Value)
		}
		return strconv.ParseFloat(n.Value, 64)
	case *ast.ParenExpr:
		return evalNode(n.X)
	case *ast.UnaryExpr:
		if n.Op != token.SUB {
			return 0, fmt.Errorf("operator %s is not allowed", n.Op)
		}
		v, err := evalNode(n.X)
		if err != nil {
			return 0, err
		}
		return -v, nil
	case *ast.BinaryExpr:
		left, err := evalNode(n.X)
		if err != nil {
			return 0, err
		}
		right, err := evalNode(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return left + right, nil
		case token.SUB:
			return left - right, nil
		case token.MUL:
			return left * right, nil
		case token.QUO:
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return left / right, nil
		default:
			return 0, fmt.Errorf("operator %s is not allowed", n.Op)
		}
	default:
		return 0, fmt.Errorf("expression element %T is not allowed", node)
	}
}

package sema

import "github.com/OmidArdestani/RTMC-Framework/pkg/compiler/ast"

// evalConstInt folds a compile-time-constant integer expression, per
// spec.md §4.4's "sizeof returns a compile-time int constant" and the
// ArraySizeNotConstant / BadBitFieldWidth checks that require one. It
// supports the subset of expressions that can reasonably appear in a
// bit-field width or array size: literals, sizeof, and +,-,*,/,%,&,|,^,
// <<,>>,~,! over constant operands, plus references to const globals
// whose own initializer folded to a constant.
func (a *Analyzer) evalConstInt(e ast.Expr) (int64, bool) {
	switch n := e.(type) {
	case *ast.IntLiteral:
		return n.Value, true
	case *ast.CharLiteral:
		return int64(n.Value), true
	case *ast.BoolLiteral:
		if n.Value {
			return 1, true
		}
		return 0, true
	case *ast.Identifier:
		v, ok := a.constVals[n.Name]
		return v, ok
	case *ast.SizeofExpr:
		var t Type
		var err error
		if n.Type != nil {
			t, err = a.resolveTypeExpr(n.Type)
		} else {
			t, err = a.checkExpr(n.X)
		}
		if err != nil {
			return 0, false
		}
		return int64(t.Size(a.layouts)), true
	case *ast.UnaryExpr:
		v, ok := a.evalConstInt(n.X)
		if !ok {
			return 0, false
		}
		switch n.Op.String() {
		case "-":
			return -v, true
		case "+":
			return v, true
		case "~":
			return ^v, true
		case "!":
			if v == 0 {
				return 1, true
			}
			return 0, true
		}
		return 0, false
	case *ast.BinaryExpr:
		l, ok := a.evalConstInt(n.Left)
		if !ok {
			return 0, false
		}
		r, ok := a.evalConstInt(n.Right)
		if !ok {
			return 0, false
		}
		switch n.Op.String() {
		case "+":
			return l + r, true
		case "-":
			return l - r, true
		case "*":
			return l * r, true
		case "/":
			if r == 0 {
				return 0, false
			}
			return l / r, true
		case "%":
			if r == 0 {
				return 0, false
			}
			return l % r, true
		case "&":
			return l & r, true
		case "|":
			return l | r, true
		case "^":
			return l ^ r, true
		case "<<":
			return l << uint(r), true
		case ">>":
			return l >> uint(r), true
		}
		return 0, false
	case *ast.CastExpr:
		return a.evalConstInt(n.X)
	default:
		return 0, false
	}
}

// foldConstant folds +, -, *, / and % over integer-literal operands; bitwise
// and comparison operators are left unfolded. It returns the folded literal
// when e is entirely constant, or an equivalent expression otherwise.
// Nothing in the compiler calls it.
func foldConstant(e ast.Expr) ast.Expr {
	bin, ok := e.(*ast.BinaryExpr)
	if !ok {
		return e
	}
	left := foldConstant(bin.Left)
	right := foldConstant(bin.Right)

	li, lok := left.(*ast.IntLiteral)
	ri, rok := right.(*ast.IntLiteral)
	if !lok || !rok {
		return &ast.BinaryExpr{Token: bin.Token, Op: bin.Op, Left: left, Right: right}
	}

	switch bin.Op.String() {
	case "+":
		return &ast.IntLiteral{Token: bin.Token, Value: li.Value + ri.Value}
	case "-":
		return &ast.IntLiteral{Token: bin.Token, Value: li.Value - ri.Value}
	case "*":
		return &ast.IntLiteral{Token: bin.Token, Value: li.Value * ri.Value}
	case "/":
		if ri.Value != 0 {
			return &ast.IntLiteral{Token: bin.Token, Value: li.Value / ri.Value}
		}
	case "%":
		if ri.Value != 0 {
			return &ast.IntLiteral{Token: bin.Token, Value: li.Value % ri.Value}
		}
	}
	return &ast.BinaryExpr{Token: bin.Token, Op: bin.Op, Left: left, Right: right}
}

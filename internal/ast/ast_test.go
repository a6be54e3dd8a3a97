package ast

import "testing"

func TestBasePositionReturnsStoredPos(t *testing.T) {
	n := &IntLit{Base: Base{Pos: Pos{Line: 3, Column: 5}}, Value: 1}
	got := n.Position()
	if got.Line != 3 || got.Column != 5 {
		t.Errorf("Position() = %+v, want {Line:3 Column:5}", got)
	}
}

func TestNodeAndStmtMarkersAreSatisfied(t *testing.T) {
	var _ Node = &IntLit{}
	var _ Node = &If{}
	var _ Node = &Block{}
	var _ Stmt = &VarDecl{}
	var _ Stmt = &ExprStmt{}
	var _ Stmt = &Block{}
}

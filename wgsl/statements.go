package wgsl

import (
	"fmt"

	"github.com/gogpu/naga/ir"
)

// writeBlock writes the statements of a block at the current indent.
func (w *Writer) writeBlock(block ir.Block) error {
	for _, stmt := range block {
		if err := w.writeStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeStatement(stmt ir.Statement) error {
	switch s := stmt.Kind.(type) {
	case ir.StmtEmit:
		return w.writeEmit(s)
	case ir.StmtBlock:
		w.writeLine("{")
		w.pushIndent()
		if err := w.writeBlock(s.Block); err != nil {
			return err
		}
		w.popIndent()
		w.writeLine("}")
		return nil
	case ir.StmtIf:
		return w.writeIf(s)
	case ir.StmtLoop:
		return w.writeLoop(s)
	case ir.StmtBreak:
		w.writeLine("break;")
		return nil
	case ir.StmtContinue:
		w.writeLine("continue;")
		return nil
	case ir.StmtReturn:
		return w.writeReturn(s)
	case ir.StmtKill:
		w.writeLine("discard;")
		return nil
	case ir.StmtStore:
		return w.writeStore(s)
	default:
		return fmt.Errorf("unsupported statement %T", stmt.Kind)
	}
}

// writeEmit materializes the flagged expressions of the range as let
// bindings. The rest stay pending and render inline where used.
func (w *Writer) writeEmit(emit ir.StmtEmit) error {
	for handle := emit.Range.Start; handle < emit.Range.End; handle++ {
		if _, bake := w.needBakeExpression[handle]; !bake {
			continue
		}
		if err := w.bakeExpression(handle); err != nil {
			return err
		}
	}
	return nil
}

// bakeExpression names an expression with a let binding. The value
// renders before the name registers so operands baked earlier are
// picked up by name while the expression itself still spells out.
func (w *Writer) bakeExpression(handle ir.ExpressionHandle) error {
	value, err := w.writeExpressionKind(handle)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("_e%d", handle)
	w.namedExpressions[handle] = name
	w.writeLine("let %s = %s;", name, value)
	return nil
}

func (w *Writer) writeIf(stmt ir.StmtIf) error {
	condition, err := w.writeExpression(stmt.Condition)
	if err != nil {
		return err
	}
	w.writeLine("if (%s) {", condition)
	w.pushIndent()
	if err := w.writeBlock(stmt.Accept); err != nil {
		return err
	}
	w.popIndent()
	if len(stmt.Reject) > 0 {
		w.writeLine("} else {")
		w.pushIndent()
		if err := w.writeBlock(stmt.Reject); err != nil {
			return err
		}
		w.popIndent()
	}
	w.writeLine("}")
	return nil
}

func (w *Writer) writeLoop(stmt ir.StmtLoop) error {
	w.writeLine("loop {")
	w.pushIndent()
	if err := w.writeBlock(stmt.Body); err != nil {
		return err
	}
	if len(stmt.Continuing) > 0 || stmt.BreakIf != nil {
		w.writeLine("continuing {")
		w.pushIndent()
		if err := w.writeBlock(stmt.Continuing); err != nil {
			return err
		}
		if stmt.BreakIf != nil {
			condition, err := w.writeExpression(*stmt.BreakIf)
			if err != nil {
				return err
			}
			w.writeLine("break if %s;", condition)
		}
		w.popIndent()
		w.writeLine("}")
	}
	w.popIndent()
	w.writeLine("}")
	return nil
}

func (w *Writer) writeReturn(stmt ir.StmtReturn) error {
	if stmt.Value == nil {
		w.writeLine("return;")
		return nil
	}
	value, err := w.writeExpression(*stmt.Value)
	if err != nil {
		return err
	}
	w.writeLine("return %s;", value)
	return nil
}

func (w *Writer) writeStore(stmt ir.StmtStore) error {
	pointer, err := w.writeExpression(stmt.Pointer)
	if err != nil {
		return err
	}
	value, err := w.writeExpression(stmt.Value)
	if err != nil {
		return err
	}
	w.writeLine("%s = %s;", pointer, value)
	return nil
}

// countBlockUses counts statement-level expression references.
func countBlockUses(block ir.Block, count func(ir.ExpressionHandle)) {
	for _, stmt := range block {
		switch s := stmt.Kind.(type) {
		case ir.StmtBlock:
			countBlockUses(s.Block, count)
		case ir.StmtIf:
			count(s.Condition)
			countBlockUses(s.Accept, count)
			countBlockUses(s.Reject, count)
		case ir.StmtLoop:
			countBlockUses(s.Body, count)
			countBlockUses(s.Continuing, count)
			if s.BreakIf != nil {
				count(*s.BreakIf)
			}
		case ir.StmtReturn:
			if s.Value != nil {
				count(*s.Value)
			}
		case ir.StmtStore:
			count(s.Pointer)
			count(s.Value)
		}
	}
}

package wgsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga/ir"
)

// writeExpression renders an expression reference: the let name when
// the value was baked, otherwise the expression spelled inline.
func (w *Writer) writeExpression(handle ir.ExpressionHandle) (string, error) {
	if name, ok := w.namedExpressions[handle]; ok {
		return name, nil
	}
	return w.writeExpressionKind(handle)
}

func (w *Writer) writeExpressionKind(handle ir.ExpressionHandle) (string, error) {
	expr := w.currentFunction.Expressions[handle]
	switch e := expr.Kind.(type) {
	case ir.Literal:
		return literalString(e.Value)
	case ir.ExprZeroValue:
		return w.typeName(e.Type) + "()", nil
	case ir.ExprCompose:
		return w.writeCompose(e)
	case ir.ExprAccess:
		return w.writeAccess(e)
	case ir.ExprAccessIndex:
		return w.writeAccessIndex(e)
	case ir.ExprSplat:
		return w.writeSplat(handle, e)
	case ir.ExprFunctionArgument:
		name, ok := w.names[nameKey{kind: nameKeyFunctionArgument, handle1: w.currentEntryPoint, handle2: e.Index}]
		if !ok {
			return "", fmt.Errorf("unknown argument %d", e.Index)
		}
		return name, nil
	case ir.ExprGlobalVariable:
		name, ok := w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(e.Variable)}]
		if !ok {
			return "", fmt.Errorf("unknown global %d", e.Variable)
		}
		return name, nil
	case ir.ExprLocalVariable:
		name, ok := w.localNames[e.Variable]
		if !ok {
			return "", fmt.Errorf("unknown local %d", e.Variable)
		}
		return name, nil
	case ir.ExprLoad:
		// WGSL loads through a pointer implicitly.
		return w.writeExpression(e.Pointer)
	case ir.ExprImageSample:
		return w.writeImageSample(e)
	case ir.ExprUnary:
		return w.writeUnary(e)
	case ir.ExprBinary:
		return w.writeBinary(e)
	case ir.ExprMath:
		return w.writeMath(e)
	case ir.ExprAs:
		return w.writeAs(handle, e)
	default:
		return "", fmt.Errorf("unsupported expression %T", expr.Kind)
	}
}

func literalString(value ir.LiteralValue) (string, error) {
	switch v := value.(type) {
	case ir.LiteralF32:
		return formatFloat(float32(v)), nil
	case ir.LiteralU32:
		return fmt.Sprintf("%du", uint32(v)), nil
	case ir.LiteralI32:
		return fmt.Sprintf("%d", int32(v)), nil
	case ir.LiteralBool:
		if v {
			return "true", nil
		}
		return "false", nil
	}
	return "", fmt.Errorf("unsupported literal %T", value)
}

func (w *Writer) writeCompose(e ir.ExprCompose) (string, error) {
	parts := make([]string, len(e.Components))
	for i, component := range e.Components {
		part, err := w.writeExpression(component)
		if err != nil {
			return "", err
		}
		parts[i] = part
	}
	return fmt.Sprintf("%s(%s)", w.typeName(e.Type), strings.Join(parts, ", ")), nil
}

func (w *Writer) writeAccess(e ir.ExprAccess) (string, error) {
	base, err := w.writeExpression(e.Base)
	if err != nil {
		return "", err
	}
	index, err := w.writeExpression(e.Index)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s[%s]", base, index), nil
}

func (w *Writer) writeAccessIndex(e ir.ExprAccessIndex) (string, error) {
	base, err := w.writeExpression(e.Base)
	if err != nil {
		return "", err
	}
	inner, typeHandle, hasHandle := w.baseTypeOf(e.Base)
	switch inner.(type) {
	case ir.StructType:
		if !hasHandle {
			return "", fmt.Errorf("struct access with unregistered base type")
		}
		member, ok := w.names[nameKey{kind: nameKeyStructMember, handle1: uint32(typeHandle), handle2: e.Index}]
		if !ok {
			return "", fmt.Errorf("unknown member %d of %s", e.Index, w.typeName(typeHandle))
		}
		return base + "." + member, nil
	case ir.VectorType:
		components := [...]string{"x", "y", "z", "w"}
		if int(e.Index) >= len(components) {
			return "", fmt.Errorf("vector component %d out of range", e.Index)
		}
		return base + "." + components[e.Index], nil
	default:
		return fmt.Sprintf("%s[%d]", base, e.Index), nil
	}
}

func (w *Writer) writeSplat(handle ir.ExpressionHandle, e ir.ExprSplat) (string, error) {
	value, err := w.writeExpression(e.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s)", w.resolvedTypeName(handle), value), nil
}

func (w *Writer) writeImageSample(e ir.ExprImageSample) (string, error) {
	image, err := w.writeExpression(e.Image)
	if err != nil {
		return "", err
	}
	sampler, err := w.writeExpression(e.Sampler)
	if err != nil {
		return "", err
	}
	coordinate, err := w.writeExpression(e.Coordinate)
	if err != nil {
		return "", err
	}
	switch e.Level.(type) {
	case ir.SampleLevelAuto, nil:
		return fmt.Sprintf("textureSample(%s, %s, %s)", image, sampler, coordinate), nil
	}
	return "", fmt.Errorf("unsupported sample level %T", e.Level)
}

func (w *Writer) writeUnary(e ir.ExprUnary) (string, error) {
	operand, err := w.writeExpression(e.Expr)
	if err != nil {
		return "", err
	}
	switch e.Op {
	case ir.UnaryNegate:
		return "-(" + operand + ")", nil
	case ir.UnaryLogicalNot:
		return "!(" + operand + ")", nil
	case ir.UnaryBitwiseNot:
		return "~(" + operand + ")", nil
	}
	return "", fmt.Errorf("unsupported unary operator %d", e.Op)
}

func (w *Writer) writeBinary(e ir.ExprBinary) (string, error) {
	left, err := w.writeExpression(e.Left)
	if err != nil {
		return "", err
	}
	right, err := w.writeExpression(e.Right)
	if err != nil {
		return "", err
	}
	op, err := binaryOperatorString(e.Op)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", left, op, right), nil
}

func binaryOperatorString(op ir.BinaryOperator) (string, error) {
	switch op {
	case ir.BinaryAdd:
		return "+", nil
	case ir.BinarySubtract:
		return "-", nil
	case ir.BinaryMultiply:
		return "*", nil
	case ir.BinaryDivide:
		return "/", nil
	case ir.BinaryModulo:
		return "%", nil
	case ir.BinaryEqual:
		return "==", nil
	case ir.BinaryNotEqual:
		return "!=", nil
	case ir.BinaryLess:
		return "<", nil
	case ir.BinaryLessEqual:
		return "<=", nil
	case ir.BinaryGreater:
		return ">", nil
	case ir.BinaryGreaterEqual:
		return ">=", nil
	case ir.BinaryAnd:
		return "&", nil
	case ir.BinaryExclusiveOr:
		return "^", nil
	case ir.BinaryInclusiveOr:
		return "|", nil
	case ir.BinaryLogicalAnd:
		return "&&", nil
	case ir.BinaryLogicalOr:
		return "||", nil
	case ir.BinaryShiftLeft:
		return "<<", nil
	case ir.BinaryShiftRight:
		return ">>", nil
	}
	return "", fmt.Errorf("unsupported binary operator %d", op)
}

func (w *Writer) writeMath(e ir.ExprMath) (string, error) {
	name, err := mathFunctionName(e.Fun)
	if err != nil {
		return "", err
	}
	args := []ir.ExpressionHandle{e.Arg}
	for _, extra := range []*ir.ExpressionHandle{e.Arg1, e.Arg2, e.Arg3} {
		if extra == nil {
			break
		}
		args = append(args, *extra)
	}
	parts := make([]string, len(args))
	for i, arg := range args {
		part, err := w.writeExpression(arg)
		if err != nil {
			return "", err
		}
		parts[i] = part
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", ")), nil
}

// mathFunctionName maps IR math functions to WGSL built-ins.
func mathFunctionName(fun ir.MathFunction) (string, error) {
	switch fun {
	case ir.MathAbs:
		return "abs", nil
	case ir.MathMin:
		return "min", nil
	case ir.MathMax:
		return "max", nil
	case ir.MathClamp:
		return "clamp", nil
	case ir.MathSaturate:
		return "saturate", nil
	case ir.MathCos:
		return "cos", nil
	case ir.MathCosh:
		return "cosh", nil
	case ir.MathSin:
		return "sin", nil
	case ir.MathSinh:
		return "sinh", nil
	case ir.MathTan:
		return "tan", nil
	case ir.MathTanh:
		return "tanh", nil
	case ir.MathAcos:
		return "acos", nil
	case ir.MathAsin:
		return "asin", nil
	case ir.MathAtan:
		return "atan", nil
	case ir.MathAtan2:
		return "atan2", nil
	case ir.MathCeil:
		return "ceil", nil
	case ir.MathFloor:
		return "floor", nil
	case ir.MathRound:
		return "round", nil
	case ir.MathFract:
		return "fract", nil
	case ir.MathTrunc:
		return "trunc", nil
	case ir.MathExp:
		return "exp", nil
	case ir.MathExp2:
		return "exp2", nil
	case ir.MathLog:
		return "log", nil
	case ir.MathLog2:
		return "log2", nil
	case ir.MathPow:
		return "pow", nil
	case ir.MathDot:
		return "dot", nil
	case ir.MathCross:
		return "cross", nil
	case ir.MathDistance:
		return "distance", nil
	case ir.MathLength:
		return "length", nil
	case ir.MathNormalize:
		return "normalize", nil
	case ir.MathSign:
		return "sign", nil
	case ir.MathFma:
		return "fma", nil
	case ir.MathMix:
		return "mix", nil
	case ir.MathStep:
		return "step", nil
	case ir.MathSmoothStep:
		return "smoothstep", nil
	case ir.MathSqrt:
		return "sqrt", nil
	case ir.MathInverseSqrt:
		return "inverseSqrt", nil
	}
	return "", fmt.Errorf("unsupported math function %d", fun)
}

// writeAs renders a scalar conversion by value constructor. Bitcasts
// keep the bit pattern and spell as bitcast.
func (w *Writer) writeAs(handle ir.ExpressionHandle, e ir.ExprAs) (string, error) {
	operand, err := w.writeExpression(e.Expr)
	if err != nil {
		return "", err
	}
	if e.Convert == nil {
		return fmt.Sprintf("bitcast<%s>(%s)", w.resolvedTypeName(handle), operand), nil
	}
	return fmt.Sprintf("%s(%s)", w.resolvedTypeName(handle), operand), nil
}

// eachOperand calls fn for every expression operand of expr.
func eachOperand(expr ir.Expression, fn func(ir.ExpressionHandle)) {
	switch e := expr.Kind.(type) {
	case ir.ExprCompose:
		for _, component := range e.Components {
			fn(component)
		}
	case ir.ExprAccess:
		fn(e.Base)
		fn(e.Index)
	case ir.ExprAccessIndex:
		fn(e.Base)
	case ir.ExprSplat:
		fn(e.Value)
	case ir.ExprLoad:
		fn(e.Pointer)
	case ir.ExprImageSample:
		fn(e.Image)
		fn(e.Sampler)
		fn(e.Coordinate)
	case ir.ExprUnary:
		fn(e.Expr)
	case ir.ExprBinary:
		fn(e.Left)
		fn(e.Right)
	case ir.ExprMath:
		fn(e.Arg)
		for _, extra := range []*ir.ExpressionHandle{e.Arg1, e.Arg2, e.Arg3} {
			if extra != nil {
				fn(*extra)
			}
		}
	case ir.ExprAs:
		fn(e.Expr)
	}
}

package ir

import (
	"fmt"
	"strings"

	"github.com/arrayflow/arrayflow/backends"
)

// String renders any node as source-like text, for debugging and error
// messages. Statements are indented, one per line.
func String(node Node) string {
	var sb strings.Builder
	print(&sb, node, 0)
	return sb.String()
}

func (e *Var) String() string    { return e.Name }
func (e *IntImm) String() string { return fmt.Sprintf("%d", e.Value) }
func (e *Add) String() string    { return fmt.Sprintf("(%s + %s)", exprString(e.A), exprString(e.B)) }
func (e *Mul) String() string    { return fmt.Sprintf("(%s * %s)", exprString(e.A), exprString(e.B)) }

func (e *Call) String() string {
	args := make([]string, len(e.Args))
	for i, arg := range e.Args {
		args[i] = exprString(arg)
	}
	suffix := ""
	if e.ValueIndex > 0 {
		suffix = fmt.Sprintf(".%d", e.ValueIndex)
	}
	switch e.Type {
	case ImageCall:
		return fmt.Sprintf("image:%s(%s)%s", e.Name, strings.Join(args, ", "), suffix)
	case ExternCall:
		return fmt.Sprintf("extern:%s(%s)%s", e.Name, strings.Join(args, ", "), suffix)
	}
	return fmt.Sprintf("%s(%s)%s", e.Name, strings.Join(args, ", "), suffix)
}

func exprString(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s", e)
}

func print(sb *strings.Builder, node Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n := node.(type) {
	case nil:
		fmt.Fprintf(sb, "%s<nil>\n", indent)
	case Expr:
		fmt.Fprintf(sb, "%s%s\n", indent, exprString(n))
	case *Block:
		for _, s := range n.Stmts {
			print(sb, s, depth)
		}
	case *For:
		device := ""
		if n.Device != backends.DeviceNone {
			device = fmt.Sprintf("<%s>", n.Device)
		}
		fmt.Fprintf(sb, "%sfor%s %s in [%s, %s + %s) {\n",
			indent, device, n.Name, exprString(n.Min), exprString(n.Min), exprString(n.Extent))
		print(sb, n.Body, depth+1)
		fmt.Fprintf(sb, "%s}\n", indent)
	case *Realize:
		bounds := make([]string, len(n.Bounds))
		for i, b := range n.Bounds {
			bounds[i] = fmt.Sprintf("[%s, %s]", exprString(b.Min), exprString(b.Extent))
		}
		fmt.Fprintf(sb, "%srealize %s(%s) {\n", indent, n.Name, strings.Join(bounds, ", "))
		print(sb, n.Body, depth+1)
		fmt.Fprintf(sb, "%s}\n", indent)
	case *Produce:
		fmt.Fprintf(sb, "%sproduce %s {\n", indent, n.Name)
		print(sb, n.Body, depth+1)
		fmt.Fprintf(sb, "%s}\n", indent)
	case *Provide:
		args := make([]string, len(n.Args))
		for i, arg := range n.Args {
			args[i] = exprString(arg)
		}
		values := make([]string, len(n.Values))
		for i, v := range n.Values {
			values[i] = exprString(v)
		}
		fmt.Fprintf(sb, "%s%s(%s) = {%s}\n", indent, n.Name,
			strings.Join(args, ", "), strings.Join(values, ", "))
	case *Evaluate:
		fmt.Fprintf(sb, "%sevaluate %s\n", indent, exprString(n.Value))
	}
}

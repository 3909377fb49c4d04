package calculator

import (
	"context"
	"encoding/json"
	"math"
	"math/big"

	"github.com/smallnest/kernelplugins/plugin"
)

// MaxFactorial bounds factorial inputs so results stay printable.
const MaxFactorial = 1000

// Plugin performs arithmetic. It has no state and no external calls.
type Plugin struct{}

var _ plugin.Plugin = Plugin{}

// New creates the plugin.
func New() Plugin { return Plugin{} }

func (Plugin) Name() string { return "calculator" }

func (Plugin) Description() string { return "Arithmetic, powers, logarithms and trigonometry." }

func num(name, desc string) plugin.Parameter {
	return plugin.Parameter{Name: name, Type: "number", Required: true, Description: desc}
}

type unary func(a float64) (float64, error)

type binary func(a, b float64) (float64, error)

func pure1(f func(float64) float64) unary {
	return func(a float64) (float64, error) { return f(a), nil }
}

func pure2(f func(a, b float64) float64) binary {
	return func(a, b float64) (float64, error) { return f(a, b), nil }
}

func (p Plugin) Functions() []plugin.Function {
	a, b := num("a", "first operand"), num("b", "second operand")
	x := num("a", "operand")
	rad := num("a", "angle in radians")
	return []plugin.Function{
		p.binary("add", "Add two numbers.", a, b, pure2(func(a, b float64) float64 { return a + b })),
		p.binary("subtract", "Subtract b from a.", a, b, pure2(func(a, b float64) float64 { return a - b })),
		p.binary("multiply", "Multiply two numbers.", a, b, pure2(func(a, b float64) float64 { return a * b })),
		p.binary("divide", "Divide a by b.", a, b, func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, plugin.Invalid("division by zero")
			}
			return a / b, nil
		}),
		p.unary("square", "Square a number.", x, pure1(func(a float64) float64 { return a * a })),
		p.unary("square_root", "Square root of a non-negative number.", x, func(a float64) (float64, error) {
			if a < 0 {
				return 0, plugin.Invalid("cannot take the square root of negative number %v", a)
			}
			return math.Sqrt(a), nil
		}),
		p.unary("cube", "Cube a number.", x, pure1(func(a float64) float64 { return a * a * a })),
		p.binary("power", "Raise base to exponent.", num("base", "base"), num("exponent", "exponent"), pure2(math.Pow)),
		{
			Name:        "log",
			Description: "Logarithm of a, natural unless base is given.",
			Parameters: []plugin.Parameter{x,
				{Name: "base", Type: "number", Description: "logarithm base"}},
			Handler: p.log,
		},
		p.unary("sin", "Sine of an angle.", rad, pure1(math.Sin)),
		p.unary("cos", "Cosine of an angle.", rad, pure1(math.Cos)),
		p.unary("tan", "Tangent of an angle.", rad, pure1(math.Tan)),
		{
			Name:        "factorial",
			Description: "Factorial of a non-negative integer.",
			Parameters:  []plugin.Parameter{{Name: "a", Type: "integer", Required: true, Description: "operand"}},
			Handler:     p.factorial,
		},
		p.unary("abs", "Absolute value.", x, pure1(math.Abs)),
	}
}

// finite rejects results that JSON cannot carry.
func finite(v float64) plugin.Result {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return plugin.Fail(plugin.Invalid("result is not a finite number"))
	}
	return plugin.OK(map[string]any{"result": v})
}

func (Plugin) unary(name, desc string, param plugin.Parameter, f unary) plugin.Function {
	return plugin.Function{
		Name:        name,
		Description: desc,
		Parameters:  []plugin.Parameter{param},
		Handler: func(_ context.Context, args plugin.Args) plugin.Result {
			a, err := args.RequireFloat(param.Name)
			if err != nil {
				return plugin.Fail(err)
			}
			v, err := f(a)
			if err != nil {
				return plugin.Fail(err)
			}
			return finite(v)
		},
	}
}

func (Plugin) binary(name, desc string, pa, pb plugin.Parameter, f binary) plugin.Function {
	return plugin.Function{
		Name:        name,
		Description: desc,
		Parameters:  []plugin.Parameter{pa, pb},
		Handler: func(_ context.Context, args plugin.Args) plugin.Result {
			a, err := args.RequireFloat(pa.Name)
			if err != nil {
				return plugin.Fail(err)
			}
			b, err := args.RequireFloat(pb.Name)
			if err != nil {
				return plugin.Fail(err)
			}
			v, err := f(a, b)
			if err != nil {
				return plugin.Fail(err)
			}
			return finite(v)
		},
	}
}

func (Plugin) log(_ context.Context, args plugin.Args) plugin.Result {
	a, err := args.RequireFloat("a")
	if err != nil {
		return plugin.Fail(err)
	}
	if a <= 0 {
		return plugin.Fail(plugin.Invalid("logarithm is undefined for %v", a))
	}
	base, ok, err := args.Float("base")
	if err != nil {
		return plugin.Fail(err)
	}
	if !ok {
		return finite(math.Log(a))
	}
	if base <= 0 || base == 1 {
		return plugin.Fail(plugin.Invalid("invalid logarithm base %v", base))
	}
	return finite(math.Log(a) / math.Log(base))
}

func (Plugin) factorial(_ context.Context, args plugin.Args) plugin.Result {
	n, err := args.Int("a", 0)
	if err != nil {
		return plugin.Fail(err)
	}
	if n < 0 {
		return plugin.Fail(plugin.Invalid("cannot take the factorial of negative number %d", n))
	}
	if n > MaxFactorial {
		return plugin.Fail(plugin.Invalid("factorial input %d exceeds %d", n, MaxFactorial))
	}
	f := new(big.Int).MulRange(1, int64(n))
	return plugin.OK(map[string]any{"result": json.Number(f.String())})
}

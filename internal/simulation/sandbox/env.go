package sandbox

import (
	"math"

	"github.com/Shopify/go-lua"
)

// removedGlobals are base library entries agent code must not reach.
var removedGlobals = []string{
	"_G",
	"collectgarbage",
	"dofile",
	"getmetatable",
	"load",
	"loadfile",
	"loadstring",
	"pcall",
	"print",
	"rawequal",
	"rawget",
	"rawlen",
	"rawset",
	"require",
	"setmetatable",
	"tostring",
	"xpcall",
}

func newState(c Context, guard *drawGuard) *lua.State {
	l := lua.NewState()

	lua.Require(l, "_G", lua.BaseOpen, true)
	l.Pop(1)
	lua.Require(l, "math", lua.MathOpen, true)
	l.Pop(1)
	lua.Require(l, "table", lua.TableOpen, true)
	l.Pop(1)

	for _, name := range removedGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}

	randomFn := randomHelper(guard)
	l.Global("math")
	l.PushGoFunction(randomFn)
	l.SetField(-2, "random")
	l.PushNil()
	l.SetField(-2, "randomseed")
	l.Pop(1)

	l.Global("table")
	l.PushNil()
	l.SetField(-2, "concat")
	l.Pop(1)

	l.CreateTable(len(c.History), 0)
	for i, attendance := range c.History {
		l.PushInteger(attendance)
		l.RawSetInt(-2, i+1)
	}
	l.SetGlobal("history")
	l.PushInteger(c.Capacity)
	l.SetGlobal("capacity")
	l.PushInteger(c.RoundNumber)
	l.SetGlobal("roundNumber")

	helpers := []lua.RegistryFunction{
		{Name: "sum", Function: sumHelper},
		{Name: "average", Function: averageHelper},
		{Name: "min", Function: minHelper},
		{Name: "max", Function: maxHelper},
		{Name: "last", Function: lastHelper},
		{Name: "random", Function: randomFn},
	}
	l.NewTable()
	for _, h := range helpers {
		l.PushGoFunction(h.Function)
		l.PushValue(-1)
		l.SetGlobal(h.Name)
		l.SetField(-2, h.Name)
	}
	l.SetGlobal("helpers")

	return l
}

// numbers reads the array part of the table argument at index 1.
func numbers(l *lua.State, helper string) []float64 {
	lua.CheckType(l, 1, lua.TypeTable)
	n := l.RawLength(1)
	values := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		l.RawGetInt(1, i)
		v, ok := l.ToNumber(-1)
		l.Pop(1)
		if !ok {
			lua.Errorf(l, "%s: element %d is not a number", helper, i)
		}
		values = append(values, v)
	}
	return values
}

func sumHelper(l *lua.State) int {
	total := 0.0
	for _, v := range numbers(l, "sum") {
		total += v
	}
	l.PushNumber(total)
	return 1
}

func averageHelper(l *lua.State) int {
	values := numbers(l, "average")
	if len(values) == 0 {
		l.PushNumber(0)
		return 1
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	l.PushNumber(total / float64(len(values)))
	return 1
}

func minHelper(l *lua.State) int {
	values := numbers(l, "min")
	if len(values) == 0 {
		l.PushNil()
		return 1
	}
	m := values[0]
	for _, v := range values[1:] {
		m = math.Min(m, v)
	}
	l.PushNumber(m)
	return 1
}

func maxHelper(l *lua.State) int {
	values := numbers(l, "max")
	if len(values) == 0 {
		l.PushNil()
		return 1
	}
	m := values[0]
	for _, v := range values[1:] {
		m = math.Max(m, v)
	}
	l.PushNumber(m)
	return 1
}

func lastHelper(l *lua.State) int {
	lua.CheckType(l, 1, lua.TypeTable)
	n := l.RawLength(1)
	if n == 0 {
		l.PushNil()
		return 1
	}
	l.RawGetInt(1, n)
	return 1
}

// randomHelper follows math.random: no arguments yields [0,1), one argument
// m yields an integer in [1,m], two arguments an integer in [m,n].
func randomHelper(guard *drawGuard) lua.Function {
	return func(l *lua.State) int {
		r, ok := guard.draw()
		if !ok {
			lua.Errorf(l, "execution interrupted")
		}
		switch l.Top() {
		case 0:
			l.PushNumber(r)
		case 1:
			upper := lua.CheckInteger(l, 1)
			if upper < 1 {
				lua.ArgumentError(l, 1, "interval is empty")
			}
			l.PushInteger(int(math.Floor(r*float64(upper))) + 1)
		default:
			lower := lua.CheckInteger(l, 1)
			upper := lua.CheckInteger(l, 2)
			if lower > upper {
				lua.ArgumentError(l, 2, "interval is empty")
			}
			l.PushInteger(int(math.Floor(r*float64(upper-lower+1))) + lower)
		}
		return 1
	}
}

// truthy coerces a Lua value to a decision. Zero, NaN, and the empty
// string count as false in addition to nil and false.
func truthy(l *lua.State, index int) bool {
	switch l.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return false
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return n != 0 && !math.IsNaN(n)
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s != ""
	default:
		return true
	}
}

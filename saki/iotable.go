package saki

import "sakinode-go/x/mathx"

const (
	// MaxLines bounds each direction of the IO table.
	MaxLines = 64
	// MaxPrecision is the largest number of implied decimal digits.
	MaxPrecision = 4
)

// Line is the state of one input or output.
type Line struct {
	Digital   bool
	Value     int32
	Precision uint8
}

// IOTable holds input and output lines indexed by position. Writing past
// the end grows the table; it never shrinks.
type IOTable struct {
	in  []Line
	out []Line
}

func setLine(tab *[]Line, n int, l Line) error {
	if !mathx.Between(n, 0, MaxLines-1) {
		return ErrCapacity
	}
	if n >= len(*tab) {
		*tab = append(*tab, make([]Line, n+1-len(*tab))...)
	}
	(*tab)[n] = l
	return nil
}

func digital(v bool) Line {
	l := Line{Digital: true}
	if v {
		l.Value = 1
	}
	return l
}

func analog(v int32, prec int) Line {
	return Line{Value: v, Precision: uint8(mathx.Clamp(prec, 0, MaxPrecision))}
}

func (t *IOTable) SetDigitalInput(n int, v bool) error  { return setLine(&t.in, n, digital(v)) }
func (t *IOTable) SetDigitalOutput(n int, v bool) error { return setLine(&t.out, n, digital(v)) }

// SetAnalogInput stores a fixed-point reading; prec is clamped to 0..MaxPrecision.
func (t *IOTable) SetAnalogInput(n int, v int32, prec int) error {
	return setLine(&t.in, n, analog(v, prec))
}

func (t *IOTable) SetAnalogOutput(n int, v int32, prec int) error {
	return setLine(&t.out, n, analog(v, prec))
}

func (t *IOTable) Inputs() []Line  { return t.in }
func (t *IOTable) Outputs() []Line { return t.out }

// Output returns output n, or a zero Line when n is out of range.
func (t *IOTable) Output(n int) Line {
	if n < 0 || n >= len(t.out) {
		return Line{}
	}
	return t.out[n]
}

package scene

import (
	"maps"
	"slices"
)

// Uniform is a value tuple pushed to a shader uniform. Int selects the
// integer setters (ints and bools); everything else is uploaded as floats.
type Uniform struct {
	Int    bool
	Values []float32
}

func Floats(v ...float32) Uniform {
	return Uniform{Values: v}
}

func Ints(v ...int32) Uniform {
	values := make([]float32, len(v))
	for i, x := range v {
		values[i] = float32(x)
	}
	return Uniform{Int: true, Values: values}
}

func Bool(b bool) Uniform {
	if b {
		return Ints(1)
	}
	return Ints(0)
}

func (u Uniform) ints() []int32 {
	out := make([]int32, len(u.Values))
	for i, v := range u.Values {
		out[i] = int32(v)
	}
	return out
}

// Uniforms maps uniform names to values.
type Uniforms map[string]Uniform

// Clone returns a copy that can be merged into without touching u.
func (u Uniforms) Clone() Uniforms {
	out := make(Uniforms, len(u))
	for name, v := range u {
		out[name] = Uniform{Int: v.Int, Values: slices.Clone(v.Values)}
	}
	return out
}

// Merge copies every entry of other into u, overriding existing names.
func (u Uniforms) Merge(other Uniforms) Uniforms {
	maps.Copy(u, other)
	return u
}

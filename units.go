package amf

import (
	dmat "github.com/flywave/go3d/float64/mat4"
)

// TransformConverter converts a transform between unit systems. bone is true
// for skeleton transforms, which must keep a unit scale.
type TransformConverter func(m dmat.T, bone bool) dmat.T

// UnitScale returns a converter that scales by s. Mesh transforms get a
// uniform scale applied after them; bone transforms only get their
// translation scaled.
func UnitScale(s float64) TransformConverter {
	return func(m dmat.T, bone bool) dmat.T {
		if bone {
			m[3][0] *= s
			m[3][1] *= s
			m[3][2] *= s
			return m
		}
		sc := scaleMatrix(s)
		return mulMatrix(&sc, &m)
	}
}

func (f TransformConverter) apply(m dmat.T, bone bool) dmat.T {
	if f == nil {
		return m
	}
	return f(m, bone)
}

func scaleMatrix(s float64) dmat.T {
	m := dmat.Ident
	m[0][0] = s
	m[1][1] = s
	m[2][2] = s
	return m
}

// mulMatrix returns a*b, so b is applied to a point first.
func mulMatrix(a, b *dmat.T) dmat.T {
	var out dmat.T
	for i := range b {
		out[i] = a.MulVec4(&b[i])
	}
	return out
}

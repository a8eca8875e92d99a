package math

import "github.com/chewxy/math32"

// AABB is an axis-aligned bounding box given by its minimal and maximal
// corners. Both corners are inclusive.
type AABB struct {
	Min, Max Vec3
}

// NewAABB returns the box spanning the two corners in any order.
func NewAABB(a, b Vec3) AABB {
	return AABB{Min: a.Min(b), Max: a.Max(b)}
}

// AABBFromCenter returns the box centred on c with half extents h.
func AABBFromCenter(c, h Vec3) AABB {
	return AABB{Min: c.Sub(h), Max: c.Add(h)}
}

// EmptyAABB returns an inverted box that any Extend call replaces.
func EmptyAABB() AABB {
	inf := math32.Inf(1)
	return AABB{Min: Splat(inf), Max: Splat(-inf)}
}

// IsValid reports whether Min <= Max on every axis.
func (b AABB) IsValid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Equal reports whether b and other have the same corners.
func (b AABB) Equal(other AABB) bool {
	return b.Min == other.Min && b.Max == other.Max
}

// Contains reports whether other lies entirely inside b.
func (b AABB) Contains(other AABB) bool {
	return other.Min.X >= b.Min.X && other.Max.X <= b.Max.X &&
		other.Min.Y >= b.Min.Y && other.Max.Y <= b.Max.Y &&
		other.Min.Z >= b.Min.Z && other.Max.Z <= b.Max.Z
}

// Intersects reports whether b and other overlap; touching faces count.
func (b AABB) Intersects(other AABB) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// Octant returns one of the 8 boxes obtained by bisecting every axis of b.
// Bit 0 of i selects the upper X half, bit 1 the upper Y half and bit 2 the
// upper Z half.
func (b AABB) Octant(i int) AABB {
	c := b.Center()
	o := AABB{Min: b.Min, Max: c}
	if i&1 != 0 {
		o.Min.X, o.Max.X = c.X, b.Max.X
	}
	if i&2 != 0 {
		o.Min.Y, o.Max.Y = c.Y, b.Max.Y
	}
	if i&4 != 0 {
		o.Min.Z, o.Max.Z = c.Z, b.Max.Z
	}
	return o
}

// Extend grows b to include p.
func (b AABB) Extend(p Vec3) AABB {
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

func (b AABB) Union(other AABB) AABB {
	return AABB{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// Corners returns the 8 corners of b, indexed like Octant.
func (b AABB) Corners() [8]Vec3 {
	var out [8]Vec3
	for i := range out {
		p := b.Min
		if i&1 != 0 {
			p.X = b.Max.X
		}
		if i&2 != 0 {
			p.Y = b.Max.Y
		}
		if i&4 != 0 {
			p.Z = b.Max.Z
		}
		out[i] = p
	}
	return out
}

// Transform returns the box enclosing the 8 corners of b transformed by m.
func (b AABB) Transform(m Mat4) AABB {
	out := EmptyAABB()
	for _, p := range b.Corners() {
		out = out.Extend(m.MulVec3(p))
	}
	return out
}

package scene

import (
	"github.com/chewxy/math32"

	"render-octree/math"
)

// CreateSphere generates a UV-sphere mesh
func CreateSphere(radius float32, segments, rings int) *Mesh {
	if segments < 3 {
		segments = 3
	}
	if rings < 2 {
		rings = 2
	}

	var positions []math.Vec3
	var indices []uint32

	for ring := 0; ring <= rings; ring++ {
		sinPhi, cosPhi := math32.Sincos(float32(ring) * math32.Pi / float32(rings))
		for seg := 0; seg <= segments; seg++ {
			sinTheta, cosTheta := math32.Sincos(float32(seg) * 2 * math32.Pi / float32(segments))
			positions = append(positions, math.Vec3{
				X: sinPhi * cosTheta,
				Y: cosPhi,
				Z: sinPhi * sinTheta,
			}.Mul(radius))
		}
	}

	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			current := uint32(ring*(segments+1) + seg)
			next := current + uint32(segments+1)

			indices = append(indices, current, next, current+1)
			indices = append(indices, current+1, next, next+1)
		}
	}

	return CreateMeshFromData("Sphere", positions, indices)
}

// CreateCylinder generates a capped cylinder mesh centred on the origin.
func CreateCylinder(radius, height float32, segments int) *Mesh {
	if segments < 3 {
		segments = 3
	}

	var positions []math.Vec3
	var indices []uint32
	halfHeight := height / 2

	for i := 0; i < segments; i++ {
		sinT, cosT := math32.Sincos(float32(i) * 2 * math32.Pi / float32(segments))
		positions = append(positions,
			math.Vec3{X: cosT * radius, Y: -halfHeight, Z: sinT * radius},
			math.Vec3{X: cosT * radius, Y: halfHeight, Z: sinT * radius},
		)
	}

	bottom := uint32(len(positions))
	top := bottom + 1
	positions = append(positions,
		math.Vec3{Y: -halfHeight},
		math.Vec3{Y: halfHeight},
	)

	for i := 0; i < segments; i++ {
		base := uint32(i * 2)
		next := uint32((i + 1) % segments * 2)
		indices = append(indices, base, base+1, next)
		indices = append(indices, next, base+1, next+1)
		indices = append(indices, top, next+1, base+1)
		indices = append(indices, bottom, base, next)
	}

	return CreateMeshFromData("Cylinder", positions, indices)
}

// CreatePyramid generates a pyramid mesh with a square base
func CreatePyramid(width, height float32) *Mesh {
	halfW := width / 2
	halfH := height / 2

	positions := []math.Vec3{
		{X: -halfW, Y: -halfH, Z: -halfW},
		{X: halfW, Y: -halfH, Z: -halfW},
		{X: halfW, Y: -halfH, Z: halfW},
		{X: -halfW, Y: -halfH, Z: halfW},
		{X: 0, Y: halfH, Z: 0},
	}
	indices := []uint32{
		0, 2, 1,
		0, 3, 2,
		0, 1, 4,
		1, 2, 4,
		2, 3, 4,
		3, 0, 4,
	}

	return CreateMeshFromData("Pyramid", positions, indices)
}

package scene

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"

	"render-octree/math"
)

type objObject struct {
	name  string
	faces [][3]int
}

// LoadOBJBounds parses a Wavefront .obj file and returns one node per
// object or group. Only positions and faces are read; polygons are fan
// triangulated.
func LoadOBJBounds(path string) ([]*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New("opening obj file failed").
			WithTag("path", path).
			Wrap(err)
	}
	defer f.Close()

	var positions []math.Vec3
	var objects []objObject
	cur := &objObject{name: "default"}

	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				continue
			}
			var p [3]float32
			for i := range p {
				v, err := strconv.ParseFloat(fields[i+1], 32)
				if err != nil {
					return nil, errors.New("invalid obj vertex").
						WithTag("path", path).
						WithTag("line", line).
						Wrap(err)
				}
				p[i] = float32(v)
			}
			positions = append(positions, math.NewVec3(p[0], p[1], p[2]))

		case "o", "g":
			if len(cur.faces) > 0 {
				objects = append(objects, *cur)
			}
			name := "default"
			if len(fields) > 1 {
				name = fields[1]
			}
			cur = &objObject{name: name}

		case "f":
			if len(fields) < 4 {
				continue
			}
			idx := make([]int, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				i, ok := parseFaceVertex(tok, len(positions))
				if !ok {
					return nil, errors.New("invalid obj face").
						WithTag("path", path).
						WithTag("line", line).
						WithTag("vertex", tok)
				}
				idx = append(idx, i)
			}
			for i := 1; i+1 < len(idx); i++ {
				cur.faces = append(cur.faces, [3]int{idx[0], idx[i], idx[i+1]})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New("reading obj file failed").
			WithTag("path", path).
			Wrap(err)
	}

	if len(cur.faces) > 0 {
		objects = append(objects, *cur)
	}
	if len(objects) == 0 {
		return nil, errors.New("no geometry found in obj file").WithTag("path", path)
	}

	nodes := make([]*Node, 0, len(objects))
	for _, o := range objects {
		n := NewNode(o.name)
		n.Mesh = buildMeshFromOBJ(o.name, o.faces, positions)
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// parseFaceVertex returns the 0-based position index of a face vertex
// token ("v", "v/vt", "v//vn" or "v/vt/vn"). Negative indices count back
// from the last vertex read so far.
func parseFaceVertex(tok string, count int) (int, bool) {
	v, _, _ := strings.Cut(tok, "/")
	n, err := strconv.Atoi(v)
	switch {
	case err != nil || n == 0:
		return 0, false
	case n < 0:
		n += count
	default:
		n--
	}
	return n, n >= 0 && n < count
}

// buildMeshFromOBJ keeps the positions the faces reference, remapping the
// indices.
func buildMeshFromOBJ(name string, faces [][3]int, positions []math.Vec3) *Mesh {
	remap := make(map[int]uint32)
	var verts []math.Vec3
	indices := make([]uint32, 0, len(faces)*3)

	for _, face := range faces {
		for _, i := range face {
			j, ok := remap[i]
			if !ok {
				j = uint32(len(verts))
				remap[i] = j
				verts = append(verts, positions[i])
			}
			indices = append(indices, j)
		}
	}
	return CreateMeshFromData(name, verts, indices)
}

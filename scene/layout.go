package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/chewxy/math32"
	"gopkg.in/yaml.v3"

	"render-octree/math"
	"render-octree/octree"
)

// Vec3 is a vector written as a [x, y, z] sequence in layout files.
type Vec3 [3]float32

func (v Vec3) toVec3() math.Vec3 {
	return math.NewVec3(v[0], v[1], v[2])
}

// Layout describes a scene: the octree bounds, the views and the bounded
// objects to simulate.
type Layout struct {
	Name     string         `yaml:"name"`
	Bounds   LayoutBounds   `yaml:"bounds"`
	MaxDepth int            `yaml:"max_depth"`
	Views    []LayoutView   `yaml:"views,omitempty"`
	Objects  []LayoutObject `yaml:"objects,omitempty"`
}

type LayoutBounds struct {
	Min Vec3 `yaml:"min"`
	Max Vec3 `yaml:"max"`
}

type LayoutView struct {
	ID       octree.SceneID `yaml:"id"`
	Name     string         `yaml:"name"`
	Position Vec3           `yaml:"position"`
	Target   Vec3           `yaml:"target"`

	// FOV is the vertical field of view in degrees.
	FOV    float32 `yaml:"fov"`
	Aspect float32 `yaml:"aspect,omitempty"`
	Near   float32 `yaml:"near"`
	Far    float32 `yaml:"far"`
}

type LayoutObject struct {
	Name        string `yaml:"name"`
	Position    Vec3   `yaml:"position"`
	HalfExtents Vec3   `yaml:"half_extents,omitempty"`
	Velocity    Vec3   `yaml:"velocity,omitempty"`

	// Shape is box, sphere, cylinder or pyramid; box when empty. The shape
	// fits in HalfExtents.
	Shape string `yaml:"shape,omitempty"`

	// Model is a glTF or Wavefront OBJ file, relative to the layout file,
	// whose meshes give the object bounds instead of Shape.
	Model string `yaml:"model,omitempty"`

	// Count repeats the object along Spacing.
	Count   int  `yaml:"count,omitempty"`
	Spacing Vec3 `yaml:"spacing,omitempty"`
}

// LoadLayout reads a YAML layout file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("reading layout failed").
			WithTag("path", path).
			Wrap(err)
	}

	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, errors.New("parsing layout failed").
			WithTag("path", path).
			Wrap(err)
	}
	if err := l.Validate(); err != nil {
		return nil, errors.New("invalid layout").
			WithTag("path", path).
			Wrap(err)
	}

	for i, o := range l.Objects {
		if o.Model != "" && !filepath.IsAbs(o.Model) {
			l.Objects[i].Model = filepath.Join(filepath.Dir(path), o.Model)
		}
	}
	return &l, nil
}

// SaveLayout writes l to path as YAML.
func SaveLayout(l *Layout, path string) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return errors.New("encoding layout failed").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("writing layout failed").
			WithTag("path", path).
			Wrap(err)
	}
	return nil
}

func (l *Layout) Validate() error {
	if !l.bounds().IsValid() {
		return errors.New("bounds min is greater than max")
	}
	if l.MaxDepth < 0 {
		return errors.New("negative max depth").WithTag("max_depth", l.MaxDepth)
	}

	seen := make(map[octree.SceneID]bool)
	for _, v := range l.Views {
		if v.ID >= octree.MaxScenes {
			return errors.New("view id out of range").
				WithTag("view", v.Name).
				WithTag("id", v.ID)
		}
		if seen[v.ID] {
			return errors.New("duplicate view id").
				WithTag("view", v.Name).
				WithTag("id", v.ID)
		}
		seen[v.ID] = true
	}

	for _, o := range l.Objects {
		if o.Model == "" && !isPositive(o.HalfExtents) {
			return errors.New("object needs a model or positive half extents").
				WithTag("object", o.Name)
		}
		if _, ok := shapes[o.Shape]; !ok {
			return errors.New("unknown object shape").
				WithTag("object", o.Name).
				WithTag("shape", o.Shape)
		}
		if ext := filepath.Ext(o.Model); o.Model != "" && !slices.Contains(modelExts, ext) {
			return errors.New("unsupported model format").
				WithTag("object", o.Name).
				WithTag("model", o.Model)
		}
		if o.Count < 0 {
			return errors.New("negative object count").WithTag("object", o.Name)
		}
	}
	return nil
}

var modelExts = []string{".glb", ".gltf", ".obj"}

// shapes builds the meshes of the layout shapes from their half extents.
var shapes = map[string]func(h math.Vec3) *Mesh{
	"":    func(h math.Vec3) *Mesh { return CreateBox("Box", h) },
	"box": func(h math.Vec3) *Mesh { return CreateBox("Box", h) },
	"sphere": func(h math.Vec3) *Mesh {
		return CreateSphere(math32.Min(h.X, math32.Min(h.Y, h.Z)), 16, 8)
	},
	"cylinder": func(h math.Vec3) *Mesh {
		return CreateCylinder(math32.Min(h.X, h.Z), 2*h.Y, 16)
	},
	"pyramid": func(h math.Vec3) *Mesh {
		return CreatePyramid(2*math32.Min(h.X, h.Z), 2*h.Y)
	},
}

func loadModel(path string) ([]*Node, error) {
	if filepath.Ext(path) == ".obj" {
		return LoadOBJBounds(path)
	}
	return LoadGLTFBounds(path)
}

func isPositive(v Vec3) bool {
	return v[0] > 0 && v[1] > 0 && v[2] > 0
}

func (l *Layout) bounds() math.AABB {
	return math.AABB{Min: l.Bounds.Min.toVec3(), Max: l.Bounds.Max.toVec3()}
}

// OctreeConfig returns the tree configuration of the layout.
func (l *Layout) OctreeConfig() octree.Config {
	config := octree.DefaultConfig()
	if l.Name != "" {
		config.Name = l.Name
	}
	if l.MaxDepth > 0 {
		config.MaxDepth = l.MaxDepth
	}
	return config
}

// NewScene creates an empty scene with the layout bounds and views.
func (l *Layout) NewScene() (*Scene, error) {
	s := NewScene(l.bounds(), l.OctreeConfig())
	for _, lv := range l.Views {
		if err := s.AddView(lv.view()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (lv LayoutView) view() *View {
	aspect := lv.Aspect
	if aspect <= 0 {
		aspect = 16.0 / 9.0
	}
	near, far := lv.Near, lv.Far
	if near <= 0 {
		near = 0.1
	}
	if far <= near {
		far = 1000
	}
	fov := lv.FOV
	if fov <= 0 {
		fov = 60
	}

	cam := NewCamera(fov*math32.Pi/180, aspect, near, far)
	cam.SetPosition(lv.Position.toVec3())
	cam.LookAt(lv.Target.toVec3(), math.Vec3Up)
	return &View{ID: lv.ID, Name: lv.Name, Camera: cam}
}

// Nodes builds the layout objects. Objects with a model load it from disk.
func (l *Layout) Nodes() ([]*Node, error) {
	var nodes []*Node
	for _, o := range l.Objects {
		count := max(o.Count, 1)
		for i := 0; i < count; i++ {
			n, err := o.node(i)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func (o LayoutObject) node(i int) (*Node, error) {
	name := o.Name
	if o.Count > 1 {
		name = fmt.Sprintf("%s_%d", o.Name, i)
	}

	n := NewNode(name)
	n.SetPosition(o.Position.toVec3().Add(o.Spacing.toVec3().Mul(float32(i))))
	n.Velocity = o.Velocity.toVec3()

	if o.Model == "" {
		n.Mesh = shapes[o.Shape](o.HalfExtents.toVec3())
		n.Mesh.Name = o.Name
		return n, nil
	}

	roots, err := loadModel(o.Model)
	if err != nil {
		return nil, errors.New("loading object model failed").
			WithTag("object", o.Name).
			Wrap(err)
	}
	for _, r := range roots {
		n.AddChild(r)
	}
	return n, nil
}

// Populate clears s and adds the layout objects to it.
func (l *Layout) Populate(s *Scene) error {
	nodes, err := l.Nodes()
	if err != nil {
		return err
	}
	if err := s.Clear(); err != nil {
		return err
	}
	for _, n := range nodes {
		s.AddNode(n)
	}
	return nil
}

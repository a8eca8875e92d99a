package scene

import (
	"render-octree/octree"
)

// View is a camera whose visibility is computed in its own octree scene
// slot.
type View struct {
	ID     octree.SceneID
	Name   string
	Camera *Camera
}

func (v *View) SceneID() octree.SceneID {
	return v.ID
}

func (v *View) Frustum() octree.FrustumTest {
	if v.Camera == nil {
		return nil
	}
	return v.Camera.GetFrustum()
}

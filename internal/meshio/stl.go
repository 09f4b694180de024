package meshio

import (
	"fmt"
	"io"

	"github.com/unixpickle/model3d/model3d"

	"github.com/talgya/hexterrain/internal/mesh"
)

// ToModel converts indexed meshes into one model3d mesh. Mesh space is y-up;
// model space is z-up, so y and z swap.
func ToModel(meshes ...*mesh.Mesh) *model3d.Mesh {
	out := model3d.NewMesh()
	for _, m := range meshes {
		for i := 0; i+2 < len(m.Indices); i += 3 {
			t := &model3d.Triangle{}
			for j := 0; j < 3; j++ {
				v := m.Vertices[m.Indices[i+j]]
				t[j] = model3d.XYZ(float64(v[0]), float64(v[2]), float64(v[1]))
			}
			// The swap mirrors the winding; restore it.
			t[1], t[2] = t[2], t[1]
			out.Add(t)
		}
	}
	return out
}

// WriteSTL writes the meshes as one binary STL model.
func WriteSTL(w io.Writer, meshes ...*mesh.Mesh) error {
	model := ToModel(meshes...)
	if _, err := w.Write(model3d.EncodeSTL(model.TriangleSlice())); err != nil {
		return fmt.Errorf("write stl: %w", err)
	}
	return nil
}

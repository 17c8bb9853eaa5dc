package geometry

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

// LoadOBJ reads a Wavefront mesh and returns deduplicated vertices with a
// triangle-list index buffer. Polygons are fanned into triangles. Vertex colors
// are derived from positions so that meshes without materials stay readable.
func LoadOBJ(mesh io.Reader) ([]Vertex, []uint32, error) {
	decoder, err := obj.DecodeReader(mesh, strings.NewReader(""))
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode obj")
	}

	var vertices []Vertex
	var indices []uint32
	uniqueVertices := make(map[int]uint32)

	addVertex := func(vertInd int) error {
		if vertInd < 0 || vertInd*3+2 >= len(decoder.Vertices) {
			return errors.Newf("obj face references missing vertex %d", vertInd)
		}

		index, exists := uniqueVertices[vertInd]
		if !exists {
			position := mgl32.Vec3{
				decoder.Vertices[vertInd*3],
				decoder.Vertices[vertInd*3+1],
				decoder.Vertices[vertInd*3+2],
			}
			index = uint32(len(vertices))
			vertices = append(vertices, Vertex{Position: position, Color: positionColor(position)})
			uniqueVertices[vertInd] = index
		}

		indices = append(indices, index)
		return nil
	}

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range []int{0, i - 1, i} {
					if err := addVertex(face.Vertices[corner]); err != nil {
						return nil, nil, err
					}
				}
			}
		}
	}

	if len(indices) == 0 {
		return nil, nil, errors.New("obj mesh has no faces")
	}

	return vertices, indices, nil
}

func positionColor(p mgl32.Vec3) mgl32.Vec3 {
	if p.Len() == 0 {
		return mgl32.Vec3{0.5, 0.5, 0.5}
	}
	n := p.Normalize()
	return mgl32.Vec3{
		0.5 + 0.5*n.X(),
		0.5 + 0.5*n.Y(),
		0.5 + 0.5*n.Z(),
	}
}

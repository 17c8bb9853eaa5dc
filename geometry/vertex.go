// Package geometry holds the vertex format the renderer draws and a few
// shapes to feed it.
package geometry

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/frameloop/gpu"
)

type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
}

// Stride is the size in bytes of one interleaved Vertex.
const Stride = int(unsafe.Sizeof(Vertex{}))

// Layout describes Vertex as a single per-vertex binding.
func Layout() gpu.VertexLayout {
	v := Vertex{}
	return gpu.VertexLayout{
		Binding: 0,
		Stride:  Stride,
		Attributes: []gpu.VertexAttribute{
			{
				Location: 0,
				Format:   gpu.FormatR32G32B32SignedFloat,
				Offset:   int(unsafe.Offsetof(v.Position)),
			},
			{
				Location: 1,
				Format:   gpu.FormatR32G32B32SignedFloat,
				Offset:   int(unsafe.Offsetof(v.Color)),
			},
		},
	}
}

// Bytes encodes vertices in host byte order, ready for upload.
func Bytes(vertices []Vertex) []byte {
	out := make([]byte, len(vertices)*Stride)
	offset := 0
	for _, v := range vertices {
		for _, f := range [...]float32{v.Position[0], v.Position[1], v.Position[2], v.Color[0], v.Color[1], v.Color[2]} {
			binary.NativeEndian.PutUint32(out[offset:], math.Float32bits(f))
			offset += 4
		}
	}
	return out
}

// IndexBytes encodes 32-bit indices in host byte order.
func IndexBytes(indices []uint32) []byte {
	out := make([]byte, 4*len(indices))
	for i, index := range indices {
		binary.NativeEndian.PutUint32(out[i*4:], index)
	}
	return out
}

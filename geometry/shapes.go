package geometry

import "github.com/go-gl/mathgl/mgl32"

// Triangle returns the classic red/green/blue triangle, wound clockwise
// in framebuffer space.
func Triangle() ([]Vertex, []uint32) {
	return []Vertex{
		{Position: mgl32.Vec3{0.0, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}},
		{Position: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 1, 0}},
		{Position: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}},
	}, []uint32{0, 1, 2}
}

// Quad returns a colored square made of two triangles.
func Quad() ([]Vertex, []uint32) {
	return []Vertex{
		{Position: mgl32.Vec3{-0.5, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}},
		{Position: mgl32.Vec3{0.5, -0.5, 0}, Color: mgl32.Vec3{0, 1, 0}},
		{Position: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}},
		{Position: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{1, 1, 1}},
	}, []uint32{0, 1, 2, 2, 3, 0}
}

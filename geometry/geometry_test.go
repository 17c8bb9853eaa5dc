package geometry

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/vkngwrapper/frameloop/gpu"
)

func TestLayout(t *testing.T) {
	layout := Layout()

	if layout.Stride != 24 {
		t.Fatalf("expected stride 24, got %d", layout.Stride)
	}
	if len(layout.Attributes) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(layout.Attributes))
	}
	if layout.Attributes[0].Offset != 0 || layout.Attributes[1].Offset != 12 {
		t.Errorf("unexpected offsets %d, %d", layout.Attributes[0].Offset, layout.Attributes[1].Offset)
	}
	for i, attr := range layout.Attributes {
		if attr.Location != i {
			t.Errorf("attribute %d at location %d", i, attr.Location)
		}
		if attr.Format != gpu.FormatR32G32B32SignedFloat {
			t.Errorf("attribute %d has format %s", i, attr.Format)
		}
	}
}

func TestBytes(t *testing.T) {
	vertices, _ := Triangle()
	b := Bytes(vertices)

	if len(b) != len(vertices)*Stride {
		t.Fatalf("expected %d bytes, got %d", len(vertices)*Stride, len(b))
	}

	// second vertex, color.g
	got := math.Float32frombits(binary.NativeEndian.Uint32(b[Stride+16:]))
	if got != vertices[1].Color.Y() {
		t.Errorf("expected %f, got %f", vertices[1].Color.Y(), got)
	}
}

func TestIndexBytes(t *testing.T) {
	b := IndexBytes([]uint32{1, 0x01020304})
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
	if binary.NativeEndian.Uint32(b[4:]) != 0x01020304 {
		t.Errorf("index round trip failed")
	}
}

func TestShapesAreClockwise(t *testing.T) {
	shapes := map[string]func() ([]Vertex, []uint32){
		"triangle": Triangle,
		"quad":     Quad,
	}

	for name, shape := range shapes {
		vertices, indices := shape()
		if len(indices)%3 != 0 {
			t.Fatalf("%s: index count %d is not a triangle list", name, len(indices))
		}
		for i := 0; i < len(indices); i += 3 {
			a, b, c := vertices[indices[i]].Position, vertices[indices[i+1]].Position, vertices[indices[i+2]].Position
			// Framebuffer y points down, so a positive cross product is clockwise on screen.
			cross := (b.X()-a.X())*(c.Y()-a.Y()) - (b.Y()-a.Y())*(c.X()-a.X())
			if cross <= 0 {
				t.Errorf("%s: triangle %d is not clockwise", name, i/3)
			}
		}
	}
}

const quadOBJ = `o quad
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
f 1 2 3 4
`

func TestLoadOBJ(t *testing.T) {
	vertices, indices, err := LoadOBJ(strings.NewReader(quadOBJ))
	if err != nil {
		t.Fatalf("LoadOBJ: %v", err)
	}

	if len(vertices) != 4 {
		t.Errorf("expected 4 unique vertices, got %d", len(vertices))
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	if len(indices) != len(want) {
		t.Fatalf("expected %d indices, got %d", len(want), len(indices))
	}
	for i := range want {
		if indices[i] != want[i] {
			t.Errorf("index %d: expected %d, got %d", i, want[i], indices[i])
		}
	}
	if vertices[2].Position.X() != 1 || vertices[2].Position.Y() != 1 {
		t.Errorf("unexpected third vertex %v", vertices[2].Position)
	}
}

func TestLoadOBJEmpty(t *testing.T) {
	_, _, err := LoadOBJ(strings.NewReader("o empty\nv 0 0 0\n"))
	if err == nil {
		t.Fatal("expected an error for a mesh without faces")
	}
}

func TestBytesEncodesEveryField(t *testing.T) {
	vertices, _ := Quad()
	b := Bytes(vertices)

	for i, v := range vertices {
		want := [...]float32{v.Position[0], v.Position[1], v.Position[2], v.Color[0], v.Color[1], v.Color[2]}
		for j, w := range want {
			got := math.Float32frombits(binary.NativeEndian.Uint32(b[i*Stride+j*4:]))
			if got != w {
				t.Errorf("vertex %d field %d: expected %f, got %f", i, j, w, got)
			}
		}
	}
}

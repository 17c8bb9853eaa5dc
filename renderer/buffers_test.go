package renderer

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/geometry"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/gpu/gputest"
)

func TestFindMemoryType(t *testing.T) {
	props := gpu.MemoryProperties{Types: []gpu.MemoryType{
		{Properties: gpu.MemoryPropertyDeviceLocal},
		{Properties: gpu.MemoryPropertyHostVisible},
		{Properties: gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent},
	}}

	cases := []struct {
		filter     uint32
		properties gpu.MemoryProperty
		expect     int
	}{
		{0b111, gpu.MemoryPropertyDeviceLocal, 0},
		{0b111, gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent, 2},
		{0b110, gpu.MemoryPropertyHostVisible, 1},
		{0b100, gpu.MemoryPropertyHostVisible, 2},
	}

	for _, tc := range cases {
		got, err := findMemoryType(props, tc.filter, tc.properties)
		if err != nil || got != tc.expect {
			t.Errorf("filter %b: expected type %d, got %d (%v)", tc.filter, tc.expect, got, err)
		}
	}

	_, err := findMemoryType(props, 0b001, gpu.MemoryPropertyHostVisible)
	if !errors.Is(err, ErrNoMemoryType) {
		t.Errorf("expected ErrNoMemoryType, got %v", err)
	}
}

func TestUploadReadBack(t *testing.T) {
	f := newFixture(t, nil)
	r := f.renderer

	data := make([]byte, 4*37)
	for i := range data {
		data[i] = byte(i * 7)
	}

	buffer, err := r.UploadBuffer(data, 4, 37, gpu.BufferUsageVertexBuffer)
	if err != nil {
		t.Fatalf("UploadBuffer: %v", err)
	}
	defer r.DestroyBuffer(buffer)

	if buffer.Usage&gpu.BufferUsageTransferDst == 0 || buffer.Usage&gpu.BufferUsageVertexBuffer == 0 {
		t.Errorf("unexpected usage %#x", buffer.Usage)
	}

	got, err := r.ReadBuffer(buffer)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read back bytes differ from the upload")
	}
}

func TestUploadReleasesStaging(t *testing.T) {
	f := newFixture(t, nil)
	r := f.renderer

	before := f.device().Live()
	buffer, err := r.UploadIndexData([]uint32{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}

	// the destination buffer and its memory
	if got := f.device().Live() - before; got != 2 {
		t.Errorf("expected 2 new live objects, got %d: %v", got, f.device().LiveObjects())
	}

	if err := r.DestroyBuffer(buffer); err != nil {
		t.Fatal(err)
	}
	if f.device().Live() != before {
		t.Errorf("DestroyBuffer left %v", f.device().LiveObjects())
	}
	if buffer.Buffer.Initialized() {
		t.Errorf("destroyed buffer still holds its handle")
	}
}

func TestUpdateBuffer(t *testing.T) {
	f := newFixture(t, nil)
	r := f.renderer

	vertices, _ := geometry.Triangle()
	buffer, err := r.UploadVertexData(vertices)
	if err != nil {
		t.Fatal(err)
	}
	defer r.DestroyBuffer(buffer)

	handle := buffer.Buffer
	vertices[0].Color = vertices[1].Color
	if err := r.UpdateVertexData(buffer, vertices); err != nil {
		t.Fatalf("UpdateVertexData: %v", err)
	}
	if buffer.Buffer != handle {
		t.Errorf("update reallocated the destination")
	}

	got, err := r.ReadBuffer(buffer)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, geometry.Bytes(vertices)) {
		t.Errorf("buffer does not hold the updated vertices")
	}

	tooLarge := append(vertices, vertices...)
	if err := r.UpdateVertexData(buffer, tooLarge); err == nil {
		t.Errorf("expected an error for data larger than the buffer")
	}
}

func TestUploadWithoutHostVisibleMemory(t *testing.T) {
	spec := gputest.DefaultDeviceSpec()
	spec.MemoryTypes = []gpu.MemoryType{{Properties: gpu.MemoryPropertyDeviceLocal}}

	f := newFixture(t, nil, spec)
	before := f.device().Live()

	_, err := f.renderer.UploadIndexData([]uint32{0, 1, 2})
	if !errors.Is(err, ErrNoMemoryType) {
		t.Fatalf("expected ErrNoMemoryType, got %v", err)
	}
	if f.device().Live() != before {
		t.Errorf("failed upload left %v", f.device().LiveObjects())
	}
}

func TestUploadPartialFailureReleases(t *testing.T) {
	ops := []string{"CreateBuffer", "AllocateMemory", "BindBufferMemory", "MapMemory", "AllocateCommandBuffers", "BeginCommandBuffer", "QueueSubmit"}

	for _, op := range ops {
		f := newFixture(t, nil)
		before := f.device().Live()

		f.instance.FailOn(op, f.instance.Calls(op)+1)
		_, err := f.renderer.UploadIndexData([]uint32{0, 1, 2})
		if !errors.Is(err, gputest.ErrInjected) {
			t.Errorf("%s: expected injected failure, got %v", op, err)
		}
		if f.device().Live() != before {
			t.Errorf("%s: failed upload left %v", op, f.device().LiveObjects())
		}
	}
}

func TestUploadValidatesSize(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.renderer.UploadBuffer(make([]byte, 10), 4, 3, gpu.BufferUsageVertexBuffer); err == nil {
		t.Errorf("expected a size mismatch error")
	}
	if _, err := f.renderer.UploadBuffer(nil, 4, 0, gpu.BufferUsageVertexBuffer); err == nil {
		t.Errorf("expected an error for an empty upload")
	}
	if _, err := f.renderer.UploadVertexBytes(make([]byte, 10), geometry.Layout()); err == nil {
		t.Errorf("expected an error for a partial vertex")
	}
}

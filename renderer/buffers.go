package renderer

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/geometry"
	"github.com/vkngwrapper/frameloop/gpu"
)

// GpuBuffer is a device-local buffer and the memory bound to it. The caller
// owns it and releases both together with DestroyBuffer.
type GpuBuffer struct {
	Buffer gpu.Buffer
	Memory gpu.DeviceMemory

	Size         int
	Usage        gpu.BufferUsage
	ElementSize  int
	ElementCount int
	// Layout is the vertex layout of the contents, nil for non-vertex data.
	Layout *gpu.VertexLayout
}

func findMemoryType(memProperties gpu.MemoryProperties, typeFilter uint32, properties gpu.MemoryProperty) (int, error) {
	for i, memoryType := range memProperties.Types {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.Properties&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Wrapf(ErrNoMemoryType, "filter %#x, properties %#x", typeFilter, uint32(properties))
}

// createBuffer returns whatever it managed to create alongside an error, so
// callers release partial results with destroyBuffer.
func (r *Renderer) createBuffer(size int, usage gpu.BufferUsage, properties gpu.MemoryProperty) (gpu.Buffer, gpu.DeviceMemory, error) {
	device := r.device.Device

	buffer, err := device.CreateBuffer(size, usage)
	if err != nil {
		return gpu.Buffer{}, gpu.DeviceMemory{}, errors.Wrap(err, "create buffer")
	}

	memRequirements := device.BufferMemoryRequirements(buffer)
	memoryTypeIndex, err := findMemoryType(r.device.Memory, memRequirements.MemoryTypeBits, properties)
	if err != nil {
		return buffer, gpu.DeviceMemory{}, err
	}

	memory, err := device.AllocateMemory(memRequirements.Size, memoryTypeIndex)
	if err != nil {
		return buffer, gpu.DeviceMemory{}, errors.Wrap(err, "allocate buffer memory")
	}

	err = device.BindBufferMemory(buffer, memory)
	if err != nil {
		return buffer, memory, errors.Wrap(err, "bind buffer memory")
	}
	return buffer, memory, nil
}

func (r *Renderer) destroyBuffer(buffer gpu.Buffer, memory gpu.DeviceMemory) {
	if buffer.Initialized() {
		r.device.Device.DestroyBuffer(buffer)
	}
	if memory.Initialized() {
		r.device.Device.FreeMemory(memory)
	}
}

func (r *Renderer) writeData(memory gpu.DeviceMemory, data []byte) error {
	device := r.device.Device

	dataBuffer, err := device.MapMemory(memory, 0, len(data))
	if err != nil {
		return errors.Wrap(err, "map staging memory")
	}
	defer device.UnmapMemory(memory)

	copy(dataBuffer, data)
	return nil
}

func (r *Renderer) beginSingleTimeCommands() (gpu.CommandBuffer, error) {
	buffers, err := r.device.Device.AllocateCommandBuffers(r.commandPool, 1)
	if err != nil {
		return gpu.CommandBuffer{}, errors.Wrap(err, "allocate one-shot command buffer")
	}

	buffer := buffers[0]
	err = r.device.Device.BeginCommandBuffer(buffer, true)
	if err != nil {
		r.device.Device.FreeCommandBuffers(buffer)
		return gpu.CommandBuffer{}, errors.Wrap(err, "begin one-shot command buffer")
	}
	return buffer, nil
}

func (r *Renderer) endSingleTimeCommands(buffer gpu.CommandBuffer) error {
	device := r.device.Device
	defer device.FreeCommandBuffers(buffer)

	err := device.EndCommandBuffer(buffer)
	if err != nil {
		return errors.Wrap(err, "end one-shot command buffer")
	}

	res, err := device.QueueSubmit(r.device.GraphicsQueue, gpu.Fence{}, gpu.SubmitInfo{
		CommandBuffers: []gpu.CommandBuffer{buffer},
	})
	err = resultError(res, err, "submit one-shot command buffer")
	if err != nil {
		return err
	}

	err = device.QueueWaitIdle(r.device.GraphicsQueue)
	if err != nil {
		return errors.Wrap(err, "wait for graphics queue idle")
	}
	return nil
}

func (r *Renderer) copyBuffer(srcBuffer, dstBuffer gpu.Buffer, size int) error {
	buffer, err := r.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = r.device.Device.CmdCopyBuffer(buffer, srcBuffer, dstBuffer, gpu.BufferCopy{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      size,
	})
	if err != nil {
		r.device.Device.FreeCommandBuffers(buffer)
		return errors.Wrap(err, "record buffer copy")
	}

	return r.endSingleTimeCommands(buffer)
}

// stage copies data into dst through a temporary host-visible buffer and
// blocks until the copy has completed.
func (r *Renderer) stage(dst gpu.Buffer, data []byte) error {
	stagingBuffer, stagingBufferMemory, err := r.createBuffer(len(data), gpu.BufferUsageTransferSrc, gpu.MemoryPropertyHostVisible|gpu.MemoryPropertyHostCoherent)
	defer r.destroyBuffer(stagingBuffer, stagingBufferMemory)
	if err != nil {
		return errors.Wrap(err, "create staging buffer")
	}

	err = r.writeData(stagingBufferMemory, data)
	if err != nil {
		return err
	}

	return r.copyBuffer(stagingBuffer, dst, len(data))
}

// UploadBuffer creates a device-local buffer holding data and blocks until the
// upload has completed. The buffer gets the requested usage plus both
// transfer usages so it can be updated and read back.
func (r *Renderer) UploadBuffer(data []byte, elementSize, elementCount int, usage gpu.BufferUsage) (*GpuBuffer, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	if elementSize <= 0 || elementCount <= 0 {
		return nil, errors.Newf("cannot upload %d elements of %d bytes", elementCount, elementSize)
	}
	size := elementSize * elementCount
	if len(data) != size {
		return nil, errors.Newf("data is %d bytes, expected %d", len(data), size)
	}

	usage |= gpu.BufferUsageTransferDst | gpu.BufferUsageTransferSrc
	buffer, memory, err := r.createBuffer(size, usage, gpu.MemoryPropertyDeviceLocal)
	if err != nil {
		r.destroyBuffer(buffer, memory)
		return nil, err
	}

	err = r.stage(buffer, data)
	if err != nil {
		r.destroyBuffer(buffer, memory)
		return nil, err
	}

	Logger().Debug("buffer uploaded", slog.Int("size", size), slog.Int("elements", elementCount))

	return &GpuBuffer{
		Buffer:       buffer,
		Memory:       memory,
		Size:         size,
		Usage:        usage,
		ElementSize:  elementSize,
		ElementCount: elementCount,
	}, nil
}

// UpdateBuffer overwrites the start of an existing buffer without
// reallocating it. data must fit.
func (r *Renderer) UpdateBuffer(buffer *GpuBuffer, data []byte) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if buffer == nil || !buffer.Buffer.Initialized() {
		return errors.New("update of a destroyed buffer")
	}
	if len(data) == 0 {
		return nil
	}
	if len(data) > buffer.Size {
		return errors.Newf("data is %d bytes, buffer holds %d", len(data), buffer.Size)
	}

	return r.stage(buffer.Buffer, data)
}

// ReadBuffer copies the contents of buffer back to host memory. It is meant
// for debugging and blocks until the copy completes.
func (r *Renderer) ReadBuffer(buffer *GpuBuffer) ([]byte, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	if buffer == nil || !buffer.Buffer.Initialized() {
		return nil, errors.New("read of a destroyed buffer")
	}

	stagingBuffer, stagingBufferMemory, err := r.createBuffer(buffer.Size, gpu.BufferUsageTransferDst, gpu.MemoryPropertyHostVisible|gpu.MemoryPropertyHostCoherent)
	defer r.destroyBuffer(stagingBuffer, stagingBufferMemory)
	if err != nil {
		return nil, errors.Wrap(err, "create readback buffer")
	}

	err = r.copyBuffer(buffer.Buffer, stagingBuffer, buffer.Size)
	if err != nil {
		return nil, err
	}

	device := r.device.Device
	mapped, err := device.MapMemory(stagingBufferMemory, 0, buffer.Size)
	if err != nil {
		return nil, errors.Wrap(err, "map readback memory")
	}
	defer device.UnmapMemory(stagingBufferMemory)

	out := make([]byte, buffer.Size)
	copy(out, mapped)
	return out, nil
}

// DestroyBuffer waits for the device to go idle and releases the buffer and
// its memory. The GpuBuffer is unusable afterwards.
func (r *Renderer) DestroyBuffer(buffer *GpuBuffer) error {
	if buffer == nil || !buffer.Buffer.Initialized() {
		return nil
	}
	if err := r.checkOpen(); err != nil {
		return err
	}

	err := r.device.Device.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "wait for device idle")
	}

	r.destroyBuffer(buffer.Buffer, buffer.Memory)
	buffer.Buffer = gpu.Buffer{}
	buffer.Memory = gpu.DeviceMemory{}
	return nil
}

// UploadVertexBytes uploads interleaved vertex data described by layout. The
// layout becomes the one new pipelines are built with.
func (r *Renderer) UploadVertexBytes(data []byte, layout gpu.VertexLayout) (*GpuBuffer, error) {
	if layout.Stride <= 0 || len(data)%layout.Stride != 0 {
		return nil, errors.Newf("%d bytes do not divide into vertices of stride %d", len(data), layout.Stride)
	}

	buffer, err := r.UploadBuffer(data, layout.Stride, len(data)/layout.Stride, gpu.BufferUsageVertexBuffer)
	if err != nil {
		return nil, errors.Wrap(err, "upload vertex data")
	}

	buffer.Layout = &layout
	r.vertexLayout = layout
	return buffer, nil
}

func (r *Renderer) UploadVertexData(vertices []geometry.Vertex) (*GpuBuffer, error) {
	return r.UploadVertexBytes(geometry.Bytes(vertices), geometry.Layout())
}

func (r *Renderer) UploadIndexData(indices []uint32) (*GpuBuffer, error) {
	buffer, err := r.UploadBuffer(geometry.IndexBytes(indices), 4, len(indices), gpu.BufferUsageIndexBuffer)
	if err != nil {
		return nil, errors.Wrap(err, "upload index data")
	}
	return buffer, nil
}

func (r *Renderer) UpdateVertexData(buffer *GpuBuffer, vertices []geometry.Vertex) error {
	return r.UpdateBuffer(buffer, geometry.Bytes(vertices))
}

func (r *Renderer) UpdateIndexData(buffer *GpuBuffer, indices []uint32) error {
	return r.UpdateBuffer(buffer, geometry.IndexBytes(indices))
}

package gpu

import "time"

// Instance is a loaded driver bound to one presentation surface. It answers
// the physical-device queries device selection needs and creates the logical
// device. Slices it returns are owned by the caller.
type Instance interface {
	Surface() Surface
	PhysicalDevices() ([]PhysicalDevice, error)
	DeviceInfo(device PhysicalDevice) (DeviceInfo, error)
	QueueFamilies(device PhysicalDevice) []QueueFamily
	SurfaceSupport(device PhysicalDevice, queueFamily int) (bool, error)
	DeviceExtensions(device PhysicalDevice) (map[string]struct{}, error)
	SurfaceCapabilities(device PhysicalDevice) (SurfaceCapabilities, error)
	SurfaceFormats(device PhysicalDevice) ([]SurfaceFormat, error)
	PresentModes(device PhysicalDevice) ([]PresentMode, error)
	MemoryProperties(device PhysicalDevice) MemoryProperties
	CreateDevice(device PhysicalDevice, info DeviceCreateInfo) (Device, error)

	// Destroy releases the surface and the instance. Every device created
	// from the instance must already be destroyed.
	Destroy()
}

// Device is a logical device with its queues.
type Device interface {
	Queue(queueFamily int) Queue
	WaitIdle() error
	Destroy()

	SwapchainDevice
	PipelineDevice
	CommandDevice
	SyncDevice
	MemoryDevice
}

type SwapchainDevice interface {
	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)
	SwapchainImages(swapchain Swapchain) ([]Image, error)
	DestroySwapchain(swapchain Swapchain)

	CreateImageView(image Image, format Format) (ImageView, error)
	DestroyImageView(view ImageView)

	CreateFramebuffer(renderPass RenderPass, attachments []ImageView, extent Extent2D) (Framebuffer, error)
	DestroyFramebuffer(framebuffer Framebuffer)

	// AcquireNextImage returns the index of the next presentable image and
	// signals semaphore once the presentation engine is done reading it.
	AcquireNextImage(swapchain Swapchain, timeout time.Duration, semaphore Semaphore) (int, Result, error)
	QueuePresent(queue Queue, info PresentInfo) (Result, error)
}

type PipelineDevice interface {
	CreateRenderPass(info RenderPassCreateInfo) (RenderPass, error)
	DestroyRenderPass(renderPass RenderPass)

	CreateShaderModule(code []uint32) (ShaderModule, error)
	DestroyShaderModule(module ShaderModule)

	CreatePipelineLayout() (PipelineLayout, error)
	DestroyPipelineLayout(layout PipelineLayout)

	CreateGraphicsPipeline(info GraphicsPipelineCreateInfo) (Pipeline, error)
	DestroyPipeline(pipeline Pipeline)
}

type CommandDevice interface {
	// CreateCommandPool creates a pool whose buffers can be reset one by one.
	CreateCommandPool(queueFamily int) (CommandPool, error)
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffers(pool CommandPool, count int) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers ...CommandBuffer)

	BeginCommandBuffer(buffer CommandBuffer, oneTimeSubmit bool) error
	EndCommandBuffer(buffer CommandBuffer) error
	ResetCommandBuffer(buffer CommandBuffer) error

	CmdBeginRenderPass(buffer CommandBuffer, info RenderPassBeginInfo) error
	CmdBindPipeline(buffer CommandBuffer, pipeline Pipeline)
	CmdBindVertexBuffers(buffer CommandBuffer, buffers []Buffer, offsets []int)
	CmdBindIndexBuffer(buffer CommandBuffer, indexBuffer Buffer, offset int, indexType IndexType)
	CmdDraw(buffer CommandBuffer, vertexCount, instanceCount int)
	CmdDrawIndexed(buffer CommandBuffer, indexCount, instanceCount int)
	CmdEndRenderPass(buffer CommandBuffer)
	CmdCopyBuffer(buffer CommandBuffer, src, dst Buffer, regions ...BufferCopy) error
}

type SyncDevice interface {
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(semaphore Semaphore)

	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	WaitForFences(timeout time.Duration, fences ...Fence) (Result, error)
	ResetFences(fences ...Fence) error

	// QueueSubmit submits work; fence may be a zero Fence.
	QueueSubmit(queue Queue, fence Fence, info SubmitInfo) (Result, error)
	QueueWaitIdle(queue Queue) error
}

type MemoryDevice interface {
	CreateBuffer(size int, usage BufferUsage) (Buffer, error)
	DestroyBuffer(buffer Buffer)
	BufferMemoryRequirements(buffer Buffer) MemoryRequirements

	AllocateMemory(size int, memoryType int) (DeviceMemory, error)
	FreeMemory(memory DeviceMemory)
	BindBufferMemory(buffer Buffer, memory DeviceMemory) error

	// MapMemory exposes size bytes of host-visible memory. The slice is only
	// valid until UnmapMemory.
	MapMemory(memory DeviceMemory, offset, size int) ([]byte, error)
	UnmapMemory(memory DeviceMemory)
}

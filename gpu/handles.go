// Package gpu is the object model the renderer is written against: opaque
// handles, registry-valued enums and the narrow Instance/Device interfaces a
// backend has to provide. The production backend lives in gpu/vkng; gpu/gputest
// provides an in-memory backend for tests.
package gpu

// Handle wraps a backend object. A zero Handle refers to nothing.
type Handle struct {
	Native any
}

// Initialized reports whether the handle refers to a backend object.
func (h Handle) Initialized() bool {
	return h.Native != nil
}

type PhysicalDevice struct{ Handle }
type Surface struct{ Handle }
type Queue struct{ Handle }
type Swapchain struct{ Handle }
type Image struct{ Handle }
type ImageView struct{ Handle }
type Framebuffer struct{ Handle }
type RenderPass struct{ Handle }
type PipelineLayout struct{ Handle }
type Pipeline struct{ Handle }
type ShaderModule struct{ Handle }
type CommandPool struct{ Handle }
type CommandBuffer struct{ Handle }
type Semaphore struct{ Handle }
type Fence struct{ Handle }
type Buffer struct{ Handle }
type DeviceMemory struct{ Handle }

// Wrap builds a handle around a backend object.
func Wrap(native any) Handle {
	return Handle{Native: native}
}

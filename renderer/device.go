package renderer

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/gpu"
)

const (
	SwapchainExtension         = "VK_KHR_swapchain"
	PortabilitySubsetExtension = "VK_KHR_portability_subset"
)

var deviceExtensions = []string{SwapchainExtension}

type QueueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
}

func (i *QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil
}

// DeviceContext is the selected physical device, the logical device created
// on it and its queues. It lives from Init to Shutdown.
type DeviceContext struct {
	PhysicalDevice gpu.PhysicalDevice
	Device         gpu.Device
	GraphicsQueue  gpu.Queue
	PresentQueue   gpu.Queue
	GraphicsFamily int
	PresentFamily  int

	Info   gpu.DeviceInfo
	Memory gpu.MemoryProperties
}

// SeparatePresentFamily reports whether presentation runs on a different
// queue family than graphics.
func (c *DeviceContext) SeparatePresentFamily() bool {
	return c.GraphicsFamily != c.PresentFamily
}

// QueueFamilies lists the distinct families the device uses, graphics first.
func (c *DeviceContext) QueueFamilies() []int {
	if c.SeparatePresentFamily() {
		return []int{c.GraphicsFamily, c.PresentFamily}
	}
	return []int{c.GraphicsFamily}
}

func findQueueFamilies(instance gpu.Instance, device gpu.PhysicalDevice) (QueueFamilyIndices, error) {
	indices := QueueFamilyIndices{}
	queueFamilies := instance.QueueFamilies(device)

	for queueFamilyIdx, queueFamily := range queueFamilies {
		if queueFamily.Graphics {
			indices.GraphicsFamily = new(int)
			*indices.GraphicsFamily = queueFamilyIdx
		}

		supported, err := instance.SurfaceSupport(device, queueFamilyIdx)
		if err != nil {
			return indices, err
		}

		if supported {
			indices.PresentFamily = new(int)
			*indices.PresentFamily = queueFamilyIdx
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices, nil
}

func checkDeviceExtensionSupport(instance gpu.Instance, device gpu.PhysicalDevice) bool {
	extensions, err := instance.DeviceExtensions(device)
	if err != nil {
		return false
	}

	for _, extension := range deviceExtensions {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			return false
		}
	}

	return true
}

func isDeviceCapable(instance gpu.Instance, device gpu.PhysicalDevice) bool {
	indices, err := findQueueFamilies(instance, device)
	if err != nil || !indices.IsComplete() {
		return false
	}

	if !checkDeviceExtensionSupport(instance, device) {
		return false
	}

	formats, err := instance.SurfaceFormats(device)
	if err != nil {
		return false
	}
	presentModes, err := instance.PresentModes(device)
	if err != nil {
		return false
	}

	return len(formats) > 0 && len(presentModes) > 0
}

// pickPhysicalDevice returns the first capable device. Devices are not scored.
func pickPhysicalDevice(instance gpu.Instance) (gpu.PhysicalDevice, error) {
	physicalDevices, err := instance.PhysicalDevices()
	if err != nil {
		return gpu.PhysicalDevice{}, errors.Wrap(err, "enumerate physical devices")
	}

	for _, device := range physicalDevices {
		if isDeviceCapable(instance, device) {
			return device, nil
		}
	}

	return gpu.PhysicalDevice{}, errors.Wrapf(ErrNoCapableDevice, "checked %d devices", len(physicalDevices))
}

// initDevice selects a physical device and creates the logical device with
// one queue per distinct family.
func initDevice(instance gpu.Instance) (*DeviceContext, error) {
	physicalDevice, err := pickPhysicalDevice(instance)
	if err != nil {
		return nil, err
	}

	indices, err := findQueueFamilies(instance, physicalDevice)
	if err != nil {
		return nil, errors.Wrap(err, "find queue families")
	}

	ctx := &DeviceContext{
		PhysicalDevice: physicalDevice,
		GraphicsFamily: *indices.GraphicsFamily,
		PresentFamily:  *indices.PresentFamily,
		Memory:         instance.MemoryProperties(physicalDevice),
	}

	ctx.Info, err = instance.DeviceInfo(physicalDevice)
	if err != nil {
		return nil, errors.Wrap(err, "query device properties")
	}

	extensionNames := append([]string{}, deviceExtensions...)

	// Vulkan portability implementations (MoltenVK) require the subset extension
	extensions, err := instance.DeviceExtensions(physicalDevice)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate device extensions")
	}
	if _, supported := extensions[PortabilitySubsetExtension]; supported {
		extensionNames = append(extensionNames, PortabilitySubsetExtension)
	}

	ctx.Device, err = instance.CreateDevice(physicalDevice, gpu.DeviceCreateInfo{
		QueueFamilies: ctx.QueueFamilies(),
		Extensions:    extensionNames,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create logical device")
	}

	ctx.GraphicsQueue = ctx.Device.Queue(ctx.GraphicsFamily)
	ctx.PresentQueue = ctx.Device.Queue(ctx.PresentFamily)

	Logger().Info("selected GPU",
		slog.String("name", ctx.Info.Name),
		slog.String("type", ctx.Info.Type),
		slog.String("pipelineCacheUUID", ctx.Info.PipelineCacheUUID.String()),
		slog.Int("graphicsFamily", ctx.GraphicsFamily),
		slog.Int("presentFamily", ctx.PresentFamily))

	return ctx, nil
}

func (c *DeviceContext) destroy() {
	if c == nil || c.Device == nil {
		return
	}
	c.Device.Destroy()
	c.Device = nil
}

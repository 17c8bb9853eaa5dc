// Package vkng implements the gpu interfaces over vkngwrapper. An Instance owns
// the Vulkan instance, the optional debug messenger and the surface of one SDL
// window; devices created from it own their logical device and queues.
package vkng

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/frameloop/gpu"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

type Options struct {
	ApplicationName string
	// Validation enables the Khronos validation layer and routes its
	// warnings and errors to Logger.
	Validation bool
	// Logger receives validation messages and startup diagnostics. Nil uses
	// slog.Default().
	Logger *slog.Logger
}

type Instance struct {
	logger *slog.Logger

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface
}

var _ gpu.Instance = (*Instance)(nil)

// NewInstance loads the Vulkan driver through SDL and creates an instance with
// the extensions window needs plus a surface for it. On failure everything
// created so far is released.
func NewInstance(window *sdl.Window, options Options) (*Instance, error) {
	i := &Instance{logger: options.Logger}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	if options.ApplicationName == "" {
		options.ApplicationName = "frameloop"
	}

	var err error
	i.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "load vulkan driver")
	}

	err = i.createInstance(window, options)
	if err != nil {
		i.Destroy()
		return nil, err
	}

	if options.Validation {
		err = i.setupDebugMessenger()
		if err != nil {
			i.Destroy()
			return nil, err
		}
	}

	err = i.createSurface(window)
	if err != nil {
		i.Destroy()
		return nil, err
	}
	return i, nil
}

func (i *Instance) createInstance(window *sdl.Window, options Options) error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    options.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	sdlExtensions := window.VulkanGetInstanceExtensions()
	extensions, _, err := i.globalDriver.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "enumerate instance extensions")
	}

	for name := range extensions {
		i.logger.Debug("instance extension available", slog.String("name", name))
	}

	for _, ext := range sdlExtensions {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Newf("create instance: cannot initialize sdl: missing extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if options.Validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if options.Validation {
		layers, _, err := i.globalDriver.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "enumerate instance layers")
		}

		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.Newf("create instance: validation layer %s not available, install the LunarG Vulkan SDK", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		// covers instance creation and destruction, which the messenger misses
		instanceOptions.Next = i.debugMessengerOptions()
	}

	i.instanceDriver, _, err = i.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return errors.Wrap(err, "create instance")
	}
	return nil
}

func (i *Instance) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    i.logDebug,
	}
}

func (i *Instance) setupDebugMessenger() error {
	var err error
	i.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(i.instanceDriver)
	i.debugMessenger, _, err = i.debugDriver.CreateDebugUtilsMessenger(nil, i.debugMessengerOptions())
	if err != nil {
		return errors.Wrap(err, "create debug messenger")
	}
	return nil
}

func (i *Instance) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelWarn
	if severity&ext_debug_utils.SeverityError != 0 {
		level = slog.LevelError
	}

	i.logger.Log(context.Background(), level, data.Message,
		slog.String("severity", severity.String()),
		slog.String("type", msgType.String()))
	return false
}

func (i *Instance) createSurface(window *sdl.Window) error {
	i.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(i.instanceDriver)
	surface, err := vkng_sdl2.CreateSurface(i.instanceDriver.Instance(), i.surfaceExtension, window)
	if err != nil {
		return errors.Wrap(err, "create surface")
	}

	i.surface = surface
	return nil
}

func (i *Instance) Surface() gpu.Surface {
	return gpu.Surface{Handle: gpu.Wrap(i.surface)}
}

func (i *Instance) PhysicalDevices() ([]gpu.PhysicalDevice, error) {
	physicalDevices, _, err := i.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}

	devices := make([]gpu.PhysicalDevice, 0, len(physicalDevices))
	for _, device := range physicalDevices {
		devices = append(devices, gpu.PhysicalDevice{Handle: gpu.Wrap(device)})
	}
	return devices, nil
}

func (i *Instance) DeviceInfo(device gpu.PhysicalDevice) (gpu.DeviceInfo, error) {
	properties, err := i.instanceDriver.GetPhysicalDeviceProperties(physicalDevice(device))
	if err != nil {
		return gpu.DeviceInfo{}, errors.Wrap(err, "get physical device properties")
	}

	return gpu.DeviceInfo{
		Name:              properties.DeviceName,
		Type:              properties.DriverType.String(),
		PipelineCacheUUID: properties.PipelineCacheUUID,
	}, nil
}

func (i *Instance) QueueFamilies(device gpu.PhysicalDevice) []gpu.QueueFamily {
	queueFamilies := i.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(physicalDevice(device))

	families := make([]gpu.QueueFamily, 0, len(queueFamilies))
	for _, queueFamily := range queueFamilies {
		families = append(families, gpu.QueueFamily{
			Graphics:   (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0,
			QueueCount: queueFamily.QueueCount,
		})
	}
	return families
}

func (i *Instance) SurfaceSupport(device gpu.PhysicalDevice, queueFamily int) (bool, error) {
	supported, _, err := i.surfaceExtension.GetPhysicalDeviceSurfaceSupport(i.surface, physicalDevice(device), queueFamily)
	if err != nil {
		return false, errors.Wrap(err, "get surface support")
	}
	return supported, nil
}

func (i *Instance) DeviceExtensions(device gpu.PhysicalDevice) (map[string]struct{}, error) {
	extensions, _, err := i.instanceDriver.EnumerateDeviceExtensionProperties(physicalDevice(device))
	if err != nil {
		return nil, errors.Wrap(err, "enumerate device extensions")
	}

	names := make(map[string]struct{}, len(extensions))
	for name := range extensions {
		names[name] = struct{}{}
	}
	return names, nil
}

func (i *Instance) SurfaceCapabilities(device gpu.PhysicalDevice) (gpu.SurfaceCapabilities, error) {
	capabilities, _, err := i.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(i.surface, physicalDevice(device))
	if err != nil {
		return gpu.SurfaceCapabilities{}, errors.Wrap(err, "get surface capabilities")
	}

	return gpu.SurfaceCapabilities{
		MinImageCount:    capabilities.MinImageCount,
		MaxImageCount:    capabilities.MaxImageCount,
		CurrentExtent:    extent(capabilities.CurrentExtent),
		MinImageExtent:   extent(capabilities.MinImageExtent),
		MaxImageExtent:   extent(capabilities.MaxImageExtent),
		CurrentTransform: gpu.SurfaceTransform(capabilities.CurrentTransform),
	}, nil
}

func (i *Instance) SurfaceFormats(device gpu.PhysicalDevice) ([]gpu.SurfaceFormat, error) {
	surfaceFormats, _, err := i.surfaceExtension.GetPhysicalDeviceSurfaceFormats(i.surface, physicalDevice(device))
	if err != nil {
		return nil, errors.Wrap(err, "get surface formats")
	}

	formats := make([]gpu.SurfaceFormat, 0, len(surfaceFormats))
	for _, format := range surfaceFormats {
		formats = append(formats, gpu.SurfaceFormat{
			Format:     gpu.Format(format.Format),
			ColorSpace: gpu.ColorSpace(format.ColorSpace),
		})
	}
	return formats, nil
}

func (i *Instance) PresentModes(device gpu.PhysicalDevice) ([]gpu.PresentMode, error) {
	presentModes, _, err := i.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(i.surface, physicalDevice(device))
	if err != nil {
		return nil, errors.Wrap(err, "get surface present modes")
	}

	modes := make([]gpu.PresentMode, 0, len(presentModes))
	for _, mode := range presentModes {
		modes = append(modes, gpu.PresentMode(mode))
	}
	return modes, nil
}

func (i *Instance) MemoryProperties(device gpu.PhysicalDevice) gpu.MemoryProperties {
	memProperties := i.instanceDriver.GetPhysicalDeviceMemoryProperties(physicalDevice(device))

	properties := gpu.MemoryProperties{}
	for _, memoryType := range memProperties.MemoryTypes {
		properties.Types = append(properties.Types, gpu.MemoryType{
			Properties: gpu.MemoryProperty(memoryType.PropertyFlags),
			HeapIndex:  memoryType.HeapIndex,
		})
	}
	return properties
}

func (i *Instance) CreateDevice(device gpu.PhysicalDevice, info gpu.DeviceCreateInfo) (gpu.Device, error) {
	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range info.QueueFamilies {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	deviceDriver, _, err := i.instanceDriver.CreateDevice(physicalDevice(device), nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueFamilyOptions,
		EnabledExtensionNames: info.Extensions,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create logical device")
	}

	for _, extension := range info.Extensions {
		if extension == khr_portability_subset.ExtensionName {
			i.logger.Debug("portability subset enabled on device")
		}
	}

	return newDevice(deviceDriver), nil
}

// Destroy releases the surface, the debug messenger and the instance. It is
// safe on a partially created Instance.
func (i *Instance) Destroy() {
	if i.debugMessenger.Initialized() {
		i.debugDriver.DestroyDebugUtilsMessenger(i.debugMessenger, nil)
		i.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if i.surface.Initialized() {
		i.surfaceExtension.DestroySurface(i.surface, nil)
		i.surface = khr_surface.Surface{}
	}

	if i.instanceDriver != nil {
		i.instanceDriver.DestroyInstance(nil)
		i.instanceDriver = nil
	}
}

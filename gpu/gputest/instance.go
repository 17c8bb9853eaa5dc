// Package gputest is an in-memory gpu backend for tests.
//
// It executes nothing on a GPU but keeps enough state to catch protocol
// mistakes: fences and semaphores track their signal state, command buffers
// cannot be reset or re-recorded while their submission is pending, objects
// referenced by pending work cannot be destroyed, and buffer copies move real
// bytes. Misuse is collected on the Device rather than failing the call, so
// tests can assert on it once at the end.
package gputest

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/frameloop/gpu"
)

// ErrInjected is returned by operations configured to fail with FailOn.
var ErrInjected = errors.New("injected failure")

// DeviceSpec describes one fake physical device.
type DeviceSpec struct {
	Name          string
	QueueFamilies []gpu.QueueFamily
	// PresentFamilies lists the queue families that can present to the surface.
	PresentFamilies []int
	Extensions      []string
	Formats         []gpu.SurfaceFormat
	PresentModes    []gpu.PresentMode
	Capabilities    gpu.SurfaceCapabilities
	MemoryTypes     []gpu.MemoryType
}

// DefaultDeviceSpec is a capable device: one graphics+present family, the
// swapchain extension, an sRGB format, FIFO and mailbox, an undefined current
// extent, and one device-local plus one host-visible memory type.
func DefaultDeviceSpec() DeviceSpec {
	return DeviceSpec{
		Name:            "Fake GPU",
		QueueFamilies:   []gpu.QueueFamily{{Graphics: true, QueueCount: 1}},
		PresentFamilies: []int{0},
		Extensions:      []string{"VK_KHR_swapchain"},
		Formats: []gpu.SurfaceFormat{
			{Format: gpu.FormatB8G8R8A8UnsignedNorm, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
			{Format: gpu.FormatB8G8R8A8SRGB, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []gpu.PresentMode{gpu.PresentModeFIFO, gpu.PresentModeMailbox},
		Capabilities: gpu.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			CurrentExtent:  gpu.UndefinedExtent,
			MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
		},
		MemoryTypes: []gpu.MemoryType{
			{Properties: gpu.MemoryPropertyDeviceLocal},
			{Properties: gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent, HeapIndex: 1},
		},
	}
}

type faults struct {
	failOn map[string]int
	calls  map[string]int
}

func (f *faults) check(op string) error {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[op]++

	if nth, ok := f.failOn[op]; ok && f.calls[op] == nth {
		return errors.Wrap(ErrInjected, op)
	}
	return nil
}

type physicalDevice struct {
	index int
}

// Instance implements gpu.Instance over a list of DeviceSpecs. Specs may be
// changed between calls; queries read them live.
type Instance struct {
	Specs []DeviceSpec
	// Device is the most recently created device.
	Device *Device

	faults    faults
	surface   gpu.Surface
	destroyed bool
}

var _ gpu.Instance = (*Instance)(nil)

func NewInstance(specs ...DeviceSpec) *Instance {
	if len(specs) == 0 {
		specs = []DeviceSpec{DefaultDeviceSpec()}
	}
	return &Instance{
		Specs:   specs,
		surface: gpu.Surface{Handle: gpu.Wrap(&object{kind: "surface", id: 0})},
	}
}

// FailOn makes the nth call (1-based) of op return ErrInjected. op is the
// method name, e.g. "CreateSwapchain". Devices created afterwards share the
// configuration.
func (i *Instance) FailOn(op string, nth int) {
	if i.faults.failOn == nil {
		i.faults.failOn = map[string]int{}
	}
	i.faults.failOn[op] = nth
}

// Calls reports how often op has been called on the instance and its devices.
func (i *Instance) Calls(op string) int {
	return i.faults.calls[op]
}

func (i *Instance) Destroyed() bool {
	return i.destroyed
}

func (i *Instance) spec(device gpu.PhysicalDevice) *DeviceSpec {
	pd, ok := device.Native.(*physicalDevice)
	if !ok || pd.index >= len(i.Specs) {
		panic(fmt.Sprintf("gputest: unknown physical device %v", device.Native))
	}
	return &i.Specs[pd.index]
}

func (i *Instance) Surface() gpu.Surface {
	return i.surface
}

func (i *Instance) PhysicalDevices() ([]gpu.PhysicalDevice, error) {
	if err := i.faults.check("PhysicalDevices"); err != nil {
		return nil, err
	}

	devices := make([]gpu.PhysicalDevice, len(i.Specs))
	for idx := range i.Specs {
		devices[idx] = gpu.PhysicalDevice{Handle: gpu.Wrap(&physicalDevice{index: idx})}
	}
	return devices, nil
}

func (i *Instance) DeviceInfo(device gpu.PhysicalDevice) (gpu.DeviceInfo, error) {
	spec := i.spec(device)
	return gpu.DeviceInfo{
		Name:              spec.Name,
		Type:              "Virtual GPU",
		PipelineCacheUUID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(spec.Name)),
	}, nil
}

func (i *Instance) QueueFamilies(device gpu.PhysicalDevice) []gpu.QueueFamily {
	return append([]gpu.QueueFamily{}, i.spec(device).QueueFamilies...)
}

func (i *Instance) SurfaceSupport(device gpu.PhysicalDevice, queueFamily int) (bool, error) {
	for _, family := range i.spec(device).PresentFamilies {
		if family == queueFamily {
			return true, nil
		}
	}
	return false, nil
}

func (i *Instance) DeviceExtensions(device gpu.PhysicalDevice) (map[string]struct{}, error) {
	extensions := map[string]struct{}{}
	for _, name := range i.spec(device).Extensions {
		extensions[name] = struct{}{}
	}
	return extensions, nil
}

func (i *Instance) SurfaceCapabilities(device gpu.PhysicalDevice) (gpu.SurfaceCapabilities, error) {
	if err := i.faults.check("SurfaceCapabilities"); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	return i.spec(device).Capabilities, nil
}

func (i *Instance) SurfaceFormats(device gpu.PhysicalDevice) ([]gpu.SurfaceFormat, error) {
	return append([]gpu.SurfaceFormat{}, i.spec(device).Formats...), nil
}

func (i *Instance) PresentModes(device gpu.PhysicalDevice) ([]gpu.PresentMode, error) {
	return append([]gpu.PresentMode{}, i.spec(device).PresentModes...), nil
}

func (i *Instance) MemoryProperties(device gpu.PhysicalDevice) gpu.MemoryProperties {
	return gpu.MemoryProperties{Types: append([]gpu.MemoryType{}, i.spec(device).MemoryTypes...)}
}

func (i *Instance) CreateDevice(device gpu.PhysicalDevice, info gpu.DeviceCreateInfo) (gpu.Device, error) {
	if err := i.faults.check("CreateDevice"); err != nil {
		return nil, err
	}

	spec := i.spec(device)
	available, _ := i.DeviceExtensions(device)
	for _, name := range info.Extensions {
		if _, ok := available[name]; !ok {
			return nil, errors.Newf("extension %s not present", name)
		}
	}
	for _, family := range info.QueueFamilies {
		if family < 0 || family >= len(spec.QueueFamilies) {
			return nil, errors.Newf("queue family %d does not exist", family)
		}
	}

	i.Device = newDevice(i, device.Native.(*physicalDevice).index, info)
	return i.Device, nil
}

func (i *Instance) Destroy() {
	if i.Device != nil && !i.Device.destroyed {
		i.Device.misuse("instance destroyed before its device")
	}
	i.destroyed = true
}

// Window is a fake native window.
type Window struct {
	Width  int
	Height int
	// OnWait runs inside WaitEvents; it usually resizes the window.
	OnWait func(w *Window)
	// Waits counts WaitEvents calls.
	Waits int

	resized bool
}

func NewWindow(width, height int) *Window {
	return &Window{Width: width, Height: height}
}

func (w *Window) DrawableSize() (int, int) {
	return w.Width, w.Height
}

func (w *Window) WaitEvents() {
	w.Waits++
	if w.OnWait != nil {
		w.OnWait(w)
		return
	}
	if w.Waits > 1000 {
		panic("gputest: window never became drawable")
	}
}

func (w *Window) Resized() bool {
	resized := w.resized
	w.resized = false
	return resized
}

// Resize changes the drawable size and raises the resize flag.
func (w *Window) Resize(width, height int) {
	w.Width = width
	w.Height = height
	w.resized = true
}

package renderer

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/gpu/gputest"
)

func TestNoCapableDevice(t *testing.T) {
	cases := map[string]func(spec *gputest.DeviceSpec){
		"no graphics queue": func(spec *gputest.DeviceSpec) {
			spec.QueueFamilies = []gpu.QueueFamily{{Graphics: false, QueueCount: 1}}
		},
		"no present queue": func(spec *gputest.DeviceSpec) {
			spec.PresentFamilies = nil
		},
		"no swapchain extension": func(spec *gputest.DeviceSpec) {
			spec.Extensions = nil
		},
		"no surface formats": func(spec *gputest.DeviceSpec) {
			spec.Formats = nil
		},
		"no present modes": func(spec *gputest.DeviceSpec) {
			spec.PresentModes = nil
		},
	}

	for name, mutate := range cases {
		spec := gputest.DefaultDeviceSpec()
		mutate(&spec)

		instance := gputest.NewInstance(spec)
		_, err := New(instance, gputest.NewWindow(640, 480), testConfig(t))
		if !errors.Is(err, ErrNoCapableDevice) {
			t.Errorf("%s: expected ErrNoCapableDevice, got %v", name, err)
		}
		if instance.Device != nil {
			t.Errorf("%s: a device was created", name)
		}
	}
}

func TestFirstCapableDeviceWins(t *testing.T) {
	incapable := gputest.DefaultDeviceSpec()
	incapable.Name = "No Swapchain"
	incapable.Extensions = nil

	first := gputest.DefaultDeviceSpec()
	first.Name = "First"

	second := gputest.DefaultDeviceSpec()
	second.Name = "Second"

	f := newFixture(t, nil, incapable, first, second)

	info := f.renderer.Device().Info
	if info.Name != "First" {
		t.Errorf("expected First to be selected, got %s", info.Name)
	}
	if info.PipelineCacheUUID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Errorf("pipeline cache UUID not reported")
	}
}

func TestSharedQueueFamily(t *testing.T) {
	f := newFixture(t, nil)

	ctx := f.renderer.Device()
	if ctx.SeparatePresentFamily() {
		t.Errorf("expected one shared family")
	}
	if got := f.device().QueueFamiliesRequested(); len(got) != 1 || got[0] != 0 {
		t.Errorf("expected one queue from family 0, got %v", got)
	}

	swapchains := f.device().Swapchains()
	if len(swapchains) != 1 || swapchains[0].SharingMode != gpu.SharingModeExclusive {
		t.Errorf("expected an exclusive swapchain, got %+v", swapchains)
	}
}

func TestSeparatePresentFamily(t *testing.T) {
	spec := gputest.DefaultDeviceSpec()
	spec.QueueFamilies = []gpu.QueueFamily{
		{Graphics: true, QueueCount: 1},
		{Graphics: false, QueueCount: 1},
	}
	spec.PresentFamilies = []int{1}

	f := newFixture(t, nil, spec)

	ctx := f.renderer.Device()
	if ctx.GraphicsFamily != 0 || ctx.PresentFamily != 1 {
		t.Fatalf("expected families 0 and 1, got %d and %d", ctx.GraphicsFamily, ctx.PresentFamily)
	}
	if got := f.device().QueueFamiliesRequested(); len(got) != 2 {
		t.Errorf("expected one queue per family, got %v", got)
	}

	swapchains := f.device().Swapchains()
	if len(swapchains) != 1 {
		t.Fatalf("expected one swapchain, got %d", len(swapchains))
	}
	if swapchains[0].SharingMode != gpu.SharingModeConcurrent || len(swapchains[0].QueueFamilyIndices) != 2 {
		t.Errorf("expected concurrent sharing across both families, got %+v", swapchains[0])
	}

	if err := f.renderer.DrawFrame(nil, nil, 0); err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}
}

func TestQueueFamilySearchStopsAtCompletePair(t *testing.T) {
	spec := gputest.DefaultDeviceSpec()
	spec.QueueFamilies = []gpu.QueueFamily{
		{Graphics: true, QueueCount: 1},
		{Graphics: true, QueueCount: 1},
		{Graphics: true, QueueCount: 1},
	}
	spec.PresentFamilies = []int{1, 2}

	instance := gputest.NewInstance(spec)
	devices, err := instance.PhysicalDevices()
	if err != nil {
		t.Fatal(err)
	}

	indices, err := findQueueFamilies(instance, devices[0])
	if err != nil {
		t.Fatal(err)
	}
	if !indices.IsComplete() {
		t.Fatal("expected complete indices")
	}
	if *indices.GraphicsFamily != 1 || *indices.PresentFamily != 1 {
		t.Errorf("expected both roles on family 1, got %d and %d", *indices.GraphicsFamily, *indices.PresentFamily)
	}
}

func TestPortabilitySubsetEnabled(t *testing.T) {
	spec := gputest.DefaultDeviceSpec()
	spec.Extensions = append(spec.Extensions, PortabilitySubsetExtension)

	f := newFixture(t, nil, spec)

	found := false
	for _, name := range f.device().ExtensionsEnabled() {
		if name == PortabilitySubsetExtension {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s to be enabled, got %v", PortabilitySubsetExtension, f.device().ExtensionsEnabled())
	}
}

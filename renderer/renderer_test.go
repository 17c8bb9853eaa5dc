package renderer

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/geometry"
	"github.com/vkngwrapper/frameloop/gpu/gputest"
	"github.com/vkngwrapper/frameloop/shaders"
)

func spirv(words ...uint32) []byte {
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}

var (
	testVertexCode   = spirv(shaders.SPIRVMagic, 0x00010000, 1)
	testFragmentCode = spirv(shaders.SPIRVMagic, 0x00010000, 2)
)

func testConfig(t *testing.T) Config {
	t.Helper()

	dir := t.TempDir()
	config := DefaultConfig()
	config.VertexShaderPath = filepath.Join(dir, "vert.spv")
	config.FragmentShaderPath = filepath.Join(dir, "frag.spv")

	if err := os.WriteFile(config.VertexShaderPath, testVertexCode, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(config.FragmentShaderPath, testFragmentCode, 0o644); err != nil {
		t.Fatal(err)
	}
	return config
}

type fixture struct {
	instance *gputest.Instance
	window   *gputest.Window
	renderer *Renderer
}

func (f *fixture) device() *gputest.Device {
	return f.instance.Device
}

func newFixture(t *testing.T, configure func(*Config), specs ...gputest.DeviceSpec) *fixture {
	t.Helper()

	config := testConfig(t)
	if configure != nil {
		configure(&config)
	}

	f := &fixture{
		instance: gputest.NewInstance(specs...),
		window:   gputest.NewWindow(800, 600),
	}

	r, err := New(f.instance, f.window, config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.renderer = r

	t.Cleanup(func() {
		f.renderer.Shutdown()
		checkClean(t, f.device())
	})
	return f
}

func checkClean(t *testing.T, device *gputest.Device) {
	t.Helper()

	if device == nil {
		return
	}
	if !device.Destroyed() {
		t.Errorf("device was not destroyed")
	}
	if device.Live() != 0 {
		t.Errorf("%d objects leaked: %v", device.Live(), device.LiveObjects())
	}
	for _, misuse := range device.Misuse() {
		t.Errorf("misuse: %s", misuse)
	}
}

func TestNewBuildsSwapchainGroup(t *testing.T) {
	f := newFixture(t, nil)
	r := f.renderer

	if r.Extent().Width != 800 || r.Extent().Height != 600 {
		t.Errorf("expected extent 800x600, got %s", r.Extent())
	}
	sc := r.Swapchain()
	if len(sc.Images) != 3 || len(sc.ImageViews) != 3 || len(sc.Framebuffers) != 3 {
		t.Errorf("expected 3 images, views and framebuffers, got %d, %d, %d",
			len(sc.Images), len(sc.ImageViews), len(sc.Framebuffers))
	}
	if !r.Pipeline().Pipeline.Initialized() || !r.Pipeline().RenderPass.Initialized() {
		t.Errorf("pipeline or render pass missing")
	}
	if len(r.SlotStates()) != DefaultFramesInFlight {
		t.Errorf("expected %d frame slots, got %d", DefaultFramesInFlight, len(r.SlotStates()))
	}
}

func TestInitFailureLeavesNothing(t *testing.T) {
	cases := []struct {
		op  string
		nth int
	}{
		{"PhysicalDevices", 1},
		{"CreateDevice", 1},
		{"CreateCommandPool", 1},
		{"AllocateCommandBuffers", 1},
		{"CreateSemaphore", 1},
		{"CreateSemaphore", 4},
		{"CreateFence", 2},
		{"CreateShaderModule", 1},
		{"CreateShaderModule", 2},
		{"SurfaceCapabilities", 1},
		{"CreateSwapchain", 1},
		{"CreateImageView", 2},
		{"CreateRenderPass", 1},
		{"CreatePipelineLayout", 1},
		{"CreateGraphicsPipeline", 1},
		{"CreateFramebuffer", 3},
	}

	for _, tc := range cases {
		instance := gputest.NewInstance()
		instance.FailOn(tc.op, tc.nth)

		_, err := New(instance, gputest.NewWindow(640, 480), testConfig(t))
		if !errors.Is(err, gputest.ErrInjected) {
			t.Errorf("%s #%d: expected injected failure, got %v", tc.op, tc.nth, err)
			continue
		}

		device := instance.Device
		if device == nil {
			continue
		}
		if !device.Destroyed() {
			t.Errorf("%s #%d: device not destroyed", tc.op, tc.nth)
		}
		if device.Live() != 0 {
			t.Errorf("%s #%d: leaked %v", tc.op, tc.nth, device.LiveObjects())
		}
		for _, misuse := range device.Misuse() {
			t.Errorf("%s #%d: misuse: %s", tc.op, tc.nth, misuse)
		}
	}
}

func TestMissingDefaultShaderFailsInit(t *testing.T) {
	config := DefaultConfig()
	config.VertexShaderPath = filepath.Join(t.TempDir(), "missing_vert.spv")
	config.FragmentShaderPath = filepath.Join(t.TempDir(), "missing_frag.spv")

	instance := gputest.NewInstance()
	_, err := New(instance, gputest.NewWindow(640, 480), config)
	if !errors.Is(err, ErrShaderLoad) {
		t.Fatalf("expected ErrShaderLoad, got %v", err)
	}
	checkClean(t, instance.Device)
}

func TestInvalidConfig(t *testing.T) {
	config := testConfig(t)
	config.FramesInFlight = 0

	instance := gputest.NewInstance()
	_, err := New(instance, gputest.NewWindow(640, 480), config)
	if err == nil {
		t.Fatal("expected an error for zero frames in flight")
	}
	if instance.Device != nil {
		t.Errorf("no device should be created for an invalid config")
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	instance := gputest.NewInstance()
	r, err := New(instance, gputest.NewWindow(640, 480), testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.DrawFrame(nil, nil, 0); err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}

	r.Shutdown()
	checkClean(t, instance.Device)

	// a second shutdown is a no-op
	r.Shutdown()
	if len(instance.Device.Misuse()) != 0 {
		t.Errorf("second shutdown misused the device: %v", instance.Device.Misuse())
	}
}

func TestCallsAfterShutdown(t *testing.T) {
	instance := gputest.NewInstance()
	r, err := New(instance, gputest.NewWindow(640, 480), testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Shutdown()
	r.Shutdown()

	if err := r.DrawFrame(nil, nil, 0); !errors.Is(err, ErrRendererClosed) {
		t.Errorf("DrawFrame: expected ErrRendererClosed, got %v", err)
	}
	vertices, _ := geometry.Triangle()
	if _, err := r.UploadVertexData(vertices); !errors.Is(err, ErrRendererClosed) {
		t.Errorf("UploadVertexData: expected ErrRendererClosed, got %v", err)
	}
	if _, err := r.CreateShaderSet(testVertexCode, testFragmentCode); !errors.Is(err, ErrRendererClosed) {
		t.Errorf("CreateShaderSet: expected ErrRendererClosed, got %v", err)
	}
	if err := r.SetActiveShader(nil); !errors.Is(err, ErrRendererClosed) {
		t.Errorf("SetActiveShader: expected ErrRendererClosed, got %v", err)
	}
	checkClean(t, instance.Device)
}

func TestBuiltInDefaultShader(t *testing.T) {
	config := DefaultConfig()
	if config.VertexShaderPath != "" || config.FragmentShaderPath != "" {
		t.Fatalf("default config must use the built-in shader")
	}

	instance := gputest.NewInstance()
	r, err := New(instance, gputest.NewWindow(640, 480), config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.DrawFrame(nil, nil, 0); err != nil {
		t.Errorf("DrawFrame: %v", err)
	}

	r.Shutdown()
	checkClean(t, instance.Device)
}

func TestConfigNeedsBothShaderPaths(t *testing.T) {
	config := DefaultConfig()
	config.VertexShaderPath = "only_vert.spv"
	if err := config.Validate(); err == nil {
		t.Errorf("expected a config with a single shader path to be rejected")
	}
}

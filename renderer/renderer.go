// Package renderer drives a Vulkan-style device through the gpu interfaces:
// device selection, the swapchain and its rebuilds, the graphics pipeline,
// the frames-in-flight draw protocol and blocking buffer uploads.
//
// A Renderer is not safe for concurrent use. Every call is expected on the
// thread that owns the window.
package renderer

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/geometry"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/shaders"
)

// Window is what the renderer needs from the native window.
type Window interface {
	// DrawableSize is the framebuffer size in pixels.
	DrawableSize() (width, height int)
	// WaitEvents blocks until the window receives an event.
	WaitEvents()
	// Resized reports whether the size changed since the last call.
	Resized() bool
}

type Renderer struct {
	config   Config
	instance gpu.Instance
	window   Window

	device      *DeviceContext
	swapchain   SwapchainState
	pipeline    PipelineState
	commandPool gpu.CommandPool
	frames      []*FrameSlot

	defaultShader *ShaderSet
	activeShader  *ShaderSet
	vertexLayout  gpu.VertexLayout

	currentFrame int
	// stale marks the swapchain for a rebuild on the next DrawFrame.
	stale  bool
	failed error
	closed bool
	stats  Stats
}

// New selects a device and builds everything needed to draw: frame slots,
// the default shader, the swapchain, render pass, pipeline and framebuffers.
// On failure every object created so far is destroyed. The instance stays
// owned by the caller and must outlive the renderer.
func New(instance gpu.Instance, window Window, config Config) (*Renderer, error) {
	err := config.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid renderer config")
	}

	r := &Renderer{
		config:       config,
		instance:     instance,
		window:       window,
		vertexLayout: geometry.Layout(),
	}

	err = r.init()
	if err != nil {
		r.destroy()
		return nil, err
	}

	return r, nil
}

func (r *Renderer) init() error {
	var err error

	r.device, err = initDevice(r.instance)
	if err != nil {
		return err
	}

	r.commandPool, err = r.device.Device.CreateCommandPool(r.device.GraphicsFamily)
	if err != nil {
		return errors.Wrap(err, "create command pool")
	}

	err = r.createFrameSlots()
	if err != nil {
		return err
	}

	if r.config.VertexShaderPath == "" {
		triangle := shaders.Triangle()
		r.defaultShader, err = r.CreateShaderSet(triangle.Vertex, triangle.Fragment)
	} else {
		r.defaultShader, err = r.LoadShaderSet(r.config.VertexShaderPath, r.config.FragmentShaderPath)
	}
	if err != nil {
		return errors.Wrap(err, "load default shader")
	}
	r.activeShader = r.defaultShader

	err = r.createSwapchainGroup()
	if err != nil {
		return err
	}

	Logger().Debug("renderer initialized", slog.Int("framesInFlight", len(r.frames)))
	return nil
}

// destroy releases everything the renderer created, in reverse order. It is
// safe on a partially initialized renderer.
func (r *Renderer) destroy() {
	if r.device == nil || r.device.Device == nil {
		return
	}
	device := r.device.Device

	r.cleanupSwapchain()

	destroyShaderSet(device, r.defaultShader)
	r.defaultShader = nil
	r.activeShader = nil

	r.destroyFrameSlots()

	if r.commandPool.Initialized() {
		device.DestroyCommandPool(r.commandPool)
		r.commandPool = gpu.CommandPool{}
	}

	r.device.destroy()
}

// Shutdown waits for the device to go idle and destroys everything New
// created. Buffers and shader sets the caller created must be destroyed
// before. Every later call fails with ErrRendererClosed.
func (r *Renderer) Shutdown() {
	if r.closed {
		return
	}
	r.closed = true
	if r.device == nil || r.device.Device == nil {
		return
	}

	err := r.device.Device.WaitIdle()
	if err != nil {
		Logger().Warn("device idle wait failed during shutdown", slog.String("err", err.Error()))
	}

	r.destroy()
}

// fail puts the renderer into the failed state and returns err.
func (r *Renderer) fail(err error) error {
	if r.failed == nil {
		r.failed = err
		Logger().Error("renderer failed", slog.String("err", err.Error()))
	}
	return err
}

func (r *Renderer) failedError() error {
	return errors.Mark(r.failed, ErrRendererFailed)
}

// checkOpen rejects calls that need the device after Shutdown.
func (r *Renderer) checkOpen() error {
	if r.closed {
		return ErrRendererClosed
	}
	return nil
}

// Failed returns the error that put the renderer into the failed state, or
// nil.
func (r *Renderer) Failed() error {
	return r.failed
}

// Extent is the size of the current swapchain images.
func (r *Renderer) Extent() gpu.Extent2D {
	return r.swapchain.Extent
}

func (r *Renderer) Device() *DeviceContext {
	return r.device
}

func (r *Renderer) Swapchain() SwapchainState {
	return r.swapchain
}

func (r *Renderer) Pipeline() PipelineState {
	return r.pipeline
}

// NotifyResized marks the swapchain stale; the next DrawFrame rebuilds it.
func (r *Renderer) NotifyResized() {
	r.stale = true
}

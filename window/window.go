// Package window wraps an SDL2 window created for Vulkan rendering.
//
// SDL must be driven from the main OS thread; callers lock it before Open.
package window

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
)

type Window struct {
	window *sdl.Window

	closeRequested bool
	resized        bool
	minimized      bool
}

// Open initializes SDL video and shows a resizable Vulkan window.
func Open(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init sdl")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}

	return &Window{window: window}, nil
}

// SDL returns the native window for surface creation.
func (w *Window) SDL() *sdl.Window {
	return w.window
}

func (w *Window) handle(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.closeRequested = true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_CLOSE:
			w.closeRequested = true
		case sdl.WINDOWEVENT_MINIMIZED:
			w.minimized = true
		case sdl.WINDOWEVENT_RESTORED:
			w.minimized = false
			w.resized = true
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			w.resized = true
		}
	}
}

// PollEvents drains the event queue without blocking.
func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handle(event)
	}
}

// WaitEvents blocks until at least one event arrives, then drains the queue.
func (w *Window) WaitEvents() {
	if event := sdl.WaitEvent(); event != nil {
		w.handle(event)
	}
	w.PollEvents()
}

func (w *Window) CloseRequested() bool {
	return w.closeRequested
}

// Minimized reports whether the window is currently iconified.
func (w *Window) Minimized() bool {
	return w.minimized || w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0
}

// Resized reports whether the window changed size since the last call.
func (w *Window) Resized() bool {
	resized := w.resized
	w.resized = false
	return resized
}

func (w *Window) DrawableSize() (width, height int) {
	widthInt, heightInt := w.window.VulkanGetDrawableSize()
	return int(widthInt), int(heightInt)
}

// Destroy closes the window and shuts SDL down. The Vulkan surface must
// already be destroyed.
func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}

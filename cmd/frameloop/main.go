package main

import (
	"flag"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/frameloop/geometry"
	"github.com/vkngwrapper/frameloop/gpu/vkng"
	"github.com/vkngwrapper/frameloop/renderer"
	"github.com/vkngwrapper/frameloop/window"
)

type options struct {
	width, height int
	mesh          string
	fpsInterval   time.Duration
	config        renderer.Config
}

func parseFlags() options {
	opts := options{config: renderer.DefaultConfig()}
	blend := "opaque"
	naiveSwap := false

	flag.IntVar(&opts.width, "width", 800, "initial window width")
	flag.IntVar(&opts.height, "height", 600, "initial window height")
	flag.StringVar(&opts.mesh, "mesh", "", "Wavefront OBJ file to draw instead of the quad")
	flag.DurationVar(&opts.fpsInterval, "fps", 2*time.Second, "interval between frame rate reports, 0 disables them")
	flag.IntVar(&opts.config.FramesInFlight, "frames", opts.config.FramesInFlight, "frames in flight")
	flag.DurationVar(&opts.config.FenceTimeout, "timeout", 0, "fence and acquire timeout, 0 waits forever")
	flag.BoolVar(&opts.config.PreferVSync, "vsync", false, "always present with FIFO")
	flag.BoolVar(&opts.config.Validation, "validation", opts.config.Validation, "enable validation layers")
	flag.StringVar(&opts.config.VertexShaderPath, "vert", opts.config.VertexShaderPath, "vertex shader SPIR-V, empty uses the built-in shader")
	flag.StringVar(&opts.config.FragmentShaderPath, "frag", opts.config.FragmentShaderPath, "fragment shader SPIR-V, empty uses the built-in shader")
	flag.StringVar(&blend, "blend", blend, "color blending: opaque or alpha")
	flag.BoolVar(&naiveSwap, "naive-shader-swap", false, "rebuild the whole swapchain when the shader changes")
	flag.Parse()

	if blend == "alpha" {
		opts.config.Blend = renderer.BlendAlpha
	}
	if naiveSwap {
		opts.config.ShaderSwap = renderer.ShaderSwapSwapchain
	}
	return opts
}

func loadMesh(path string) ([]geometry.Vertex, []uint32, error) {
	if path == "" {
		vertices, indices := geometry.Quad()
		return vertices, indices, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open mesh")
	}
	defer f.Close()

	return geometry.LoadOBJ(f)
}

func main() {
	// SDL and the presentation engine must stay on the main thread
	runtime.LockOSThread()

	opts := parseFlags()
	renderer.SetLogger(slog.Default())

	if err := run(opts); err != nil {
		slog.Error("frameloop exited", "err", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if err := opts.config.Validate(); err != nil {
		return err
	}

	vertices, indices, err := loadMesh(opts.mesh)
	if err != nil {
		return err
	}

	win, err := window.Open("frameloop", opts.width, opts.height)
	if err != nil {
		return err
	}
	defer win.Destroy()

	instance, err := vkng.NewInstance(win.SDL(), vkng.Options{
		ApplicationName: "frameloop",
		Validation:      opts.config.Validation,
		Logger:          slog.Default(),
	})
	if err != nil {
		return err
	}
	defer instance.Destroy()

	r, err := renderer.New(instance, win, opts.config)
	if err != nil {
		return err
	}
	defer r.Shutdown()

	slog.Info("using device", "name", r.Device().Info.Name, "type", r.Device().Info.Type)

	vertexBuffer, err := r.UploadVertexData(vertices)
	if err != nil {
		return err
	}
	defer r.DestroyBuffer(vertexBuffer)

	indexBuffer, err := r.UploadIndexData(indices)
	if err != nil {
		return err
	}
	defer r.DestroyBuffer(indexBuffer)

	return mainLoop(win, r, vertexBuffer, indexBuffer, len(indices), opts.fpsInterval)
}

func mainLoop(win *window.Window, r *renderer.Renderer, vertexBuffer, indexBuffer *renderer.GpuBuffer, count int, fpsInterval time.Duration) error {
	lastReport := hrtime.Now()
	var lastPresented uint64

	for {
		win.PollEvents()
		if win.CloseRequested() {
			return nil
		}
		if win.Minimized() {
			win.WaitEvents()
			continue
		}

		err := r.DrawFrame(vertexBuffer, indexBuffer, count)
		if errors.Is(err, renderer.ErrTimeout) {
			slog.Warn("frame skipped", "err", err)
			continue
		}
		if err != nil {
			return err
		}

		if fpsInterval <= 0 {
			continue
		}
		if elapsed := hrtime.Since(lastReport); elapsed >= fpsInterval {
			stats := r.Stats()
			frames := stats.FramesPresented - lastPresented
			slog.Info("frame rate",
				"fps", float64(frames)/elapsed.Seconds(),
				"cpu", stats.LastFrameTime,
				"extent", r.Extent().String(),
				"rebuilds", stats.SwapchainRebuilds,
			)
			lastPresented = stats.FramesPresented
			lastReport = hrtime.Now()
		}
	}
}

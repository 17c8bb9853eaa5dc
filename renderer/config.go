package renderer

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/gpu"
)

const DefaultFramesInFlight = 2

// BlendMode selects the color blend state of the pipeline.
type BlendMode int

const (
	// BlendOpaque overwrites the attachment.
	BlendOpaque BlendMode = iota
	// BlendAlpha blends with src-alpha / one-minus-src-alpha.
	BlendAlpha
)

// ShaderSwapPolicy selects what SetActiveShader rebuilds.
type ShaderSwapPolicy int

const (
	// ShaderSwapPipeline rebuilds only the graphics pipeline.
	ShaderSwapPipeline ShaderSwapPolicy = iota
	// ShaderSwapSwapchain rebuilds the whole swapchain group.
	ShaderSwapSwapchain
)

type Config struct {
	// FramesInFlight is the number of frame slots cycled round-robin.
	FramesInFlight int
	// FenceTimeout bounds every fence wait and image acquire. Zero waits
	// forever.
	FenceTimeout time.Duration

	Blend      BlendMode
	ShaderSwap ShaderSwapPolicy
	// PreferVSync skips mailbox and always presents with FIFO.
	PreferVSync bool
	ClearColor  [4]float32

	// VertexShaderPath and FragmentShaderPath name the default shader's
	// SPIR-V files. Both empty selects the built-in triangle shader.
	VertexShaderPath   string
	FragmentShaderPath string

	// Validation asks the backend for validation layers. It is on by default
	// in debug builds.
	Validation bool
}

func DefaultConfig() Config {
	return Config{
		FramesInFlight: DefaultFramesInFlight,
		Blend:          BlendOpaque,
		ShaderSwap:     ShaderSwapPipeline,
		ClearColor:     [4]float32{0, 0, 0, 1},
		Validation:     debugBuild,
	}
}

func (c Config) Validate() error {
	if c.FramesInFlight < 1 {
		return errors.Newf("frames in flight must be at least 1, got %d", c.FramesInFlight)
	}
	if c.FenceTimeout < 0 {
		return errors.Newf("fence timeout must not be negative, got %s", c.FenceTimeout)
	}
	if c.Blend != BlendOpaque && c.Blend != BlendAlpha {
		return errors.Newf("unknown blend mode %d", c.Blend)
	}
	if c.ShaderSwap != ShaderSwapPipeline && c.ShaderSwap != ShaderSwapSwapchain {
		return errors.Newf("unknown shader swap policy %d", c.ShaderSwap)
	}
	if (c.VertexShaderPath == "") != (c.FragmentShaderPath == "") {
		return errors.New("set both default shader paths or neither")
	}
	return nil
}

func (c Config) waitTimeout() time.Duration {
	if c.FenceTimeout == 0 {
		return gpu.NoTimeout
	}
	return c.FenceTimeout
}

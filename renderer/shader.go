package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/shaders"
)

// ShaderSet is a vertex and a fragment module. Bytecode is not kept once the
// modules exist.
type ShaderSet struct {
	Vertex   gpu.ShaderModule
	Fragment gpu.ShaderModule
}

func (s *ShaderSet) valid() bool {
	return s.Vertex.Initialized() && s.Fragment.Initialized()
}

func createShaderModule(device gpu.PipelineDevice, bytecode []byte, stage string) (gpu.ShaderModule, error) {
	code, err := shaders.ToCode(bytecode)
	if err != nil {
		return gpu.ShaderModule{}, errors.Mark(errors.Wrapf(err, "%s shader", stage), ErrShaderLoad)
	}

	module, err := device.CreateShaderModule(code)
	if err != nil {
		return gpu.ShaderModule{}, errors.Mark(errors.Wrapf(err, "create %s shader module", stage), ErrShaderLoad)
	}
	return module, nil
}

func createShaderSet(device gpu.PipelineDevice, vertexBytecode, fragmentBytecode []byte) (*ShaderSet, error) {
	vertex, err := createShaderModule(device, vertexBytecode, "vertex")
	if err != nil {
		return nil, err
	}

	fragment, err := createShaderModule(device, fragmentBytecode, "fragment")
	if err != nil {
		device.DestroyShaderModule(vertex)
		return nil, err
	}

	return &ShaderSet{Vertex: vertex, Fragment: fragment}, nil
}

func destroyShaderSet(device gpu.PipelineDevice, set *ShaderSet) {
	if set == nil {
		return
	}
	if set.Vertex.Initialized() {
		device.DestroyShaderModule(set.Vertex)
	}
	if set.Fragment.Initialized() {
		device.DestroyShaderModule(set.Fragment)
	}
	*set = ShaderSet{}
}

// CreateShaderSet builds a shader set from SPIR-V bytecode. Empty or malformed
// bytecode fails with ErrShaderLoad; there is no fallback shader.
func (r *Renderer) CreateShaderSet(vertexBytecode, fragmentBytecode []byte) (*ShaderSet, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	return createShaderSet(r.device.Device, vertexBytecode, fragmentBytecode)
}

// LoadShaderSet reads both stages from disk and builds a shader set. A missing
// file reads as empty bytecode and fails with ErrShaderLoad.
func (r *Renderer) LoadShaderSet(vertexPath, fragmentPath string) (*ShaderSet, error) {
	pair, err := shaders.LoadPair(vertexPath, fragmentPath)
	if err != nil {
		return nil, errors.Mark(err, ErrShaderLoad)
	}

	set, err := r.CreateShaderSet(pair.Vertex, pair.Fragment)
	if err != nil {
		return nil, errors.Wrapf(err, "load shaders %s, %s", vertexPath, fragmentPath)
	}
	return set, nil
}

// SetActiveShader makes set the shader used by subsequent frames and rebuilds
// according to the configured ShaderSwapPolicy. A nil set restores the
// default shader.
func (r *Renderer) SetActiveShader(set *ShaderSet) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if r.failed != nil {
		return r.failedError()
	}
	if set == nil {
		set = r.defaultShader
	}
	if !set.valid() {
		return errors.Wrap(ErrShaderLoad, "shader set has been destroyed")
	}
	if set == r.activeShader {
		return nil
	}

	r.activeShader = set

	if r.config.ShaderSwap == ShaderSwapSwapchain {
		return r.rebuildSwapchain()
	}
	return r.rebuildPipeline()
}

// DestroyShaderSet waits for the device to go idle and releases both modules.
// The active and the default set cannot be destroyed.
func (r *Renderer) DestroyShaderSet(set *ShaderSet) error {
	if set == nil {
		return nil
	}
	if err := r.checkOpen(); err != nil {
		return err
	}
	if set == r.activeShader || set == r.defaultShader {
		return errors.New("shader set is in use")
	}

	err := r.device.Device.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "wait for device idle")
	}

	destroyShaderSet(r.device.Device, set)
	return nil
}

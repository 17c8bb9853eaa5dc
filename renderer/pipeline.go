package renderer

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/gpu"
)

const shaderEntryPoint = "main"

// PipelineState is the render pass and graphics pipeline plus the inputs they
// were built from. A change to any input invalidates the pipeline.
type PipelineState struct {
	RenderPass gpu.RenderPass
	Layout     gpu.PipelineLayout
	Pipeline   gpu.Pipeline

	Format       gpu.Format
	Extent       gpu.Extent2D
	Shader       *ShaderSet
	VertexLayout gpu.VertexLayout
}

func renderPassInfo(format gpu.Format) gpu.RenderPassCreateInfo {
	return gpu.RenderPassCreateInfo{
		Format:        format,
		Samples:       1,
		LoadOp:        gpu.AttachmentLoadOpClear,
		StoreOp:       gpu.AttachmentStoreOpStore,
		InitialLayout: gpu.ImageLayoutUndefined,
		FinalLayout:   gpu.ImageLayoutPresentSrc,
		SubpassLayout: gpu.ImageLayoutColorAttachmentOptimal,
		Dependencies: []gpu.SubpassDependency{
			{
				SrcSubpass:    gpu.SubpassExternal,
				DstSubpass:    0,
				SrcStageMask:  gpu.PipelineStageColorAttachmentOutput,
				DstStageMask:  gpu.PipelineStageColorAttachmentOutput,
				DstAccessMask: gpu.AccessColorAttachmentWrite,
			},
		},
	}
}

func blendState(mode BlendMode) gpu.BlendState {
	if mode != BlendAlpha {
		return gpu.BlendState{
			SrcColor: gpu.BlendFactorOne,
			DstColor: gpu.BlendFactorZero,
			ColorOp:  gpu.BlendOpAdd,
			SrcAlpha: gpu.BlendFactorOne,
			DstAlpha: gpu.BlendFactorZero,
			AlphaOp:  gpu.BlendOpAdd,
		}
	}

	return gpu.BlendState{
		Enabled:  true,
		SrcColor: gpu.BlendFactorSrcAlpha,
		DstColor: gpu.BlendFactorOneMinusSrcAlpha,
		ColorOp:  gpu.BlendOpAdd,
		SrcAlpha: gpu.BlendFactorOne,
		DstAlpha: gpu.BlendFactorZero,
		AlphaOp:  gpu.BlendOpAdd,
	}
}

func (r *Renderer) createRenderPass() error {
	renderPass, err := r.device.Device.CreateRenderPass(renderPassInfo(r.swapchain.Format.Format))
	if err != nil {
		return errors.Wrap(err, "create render pass")
	}

	r.pipeline.RenderPass = renderPass
	r.pipeline.Format = r.swapchain.Format.Format
	return nil
}

// createGraphicsPipeline builds the pipeline for the active shader set and
// vertex layout at the swapchain extent. The render pass must exist.
func (r *Renderer) createGraphicsPipeline() error {
	device := r.device.Device
	shader := r.activeShader
	if shader == nil || !shader.valid() {
		return errors.Wrap(ErrShaderLoad, "no usable active shader set")
	}

	layout, err := device.CreatePipelineLayout()
	if err != nil {
		return errors.Wrap(err, "create pipeline layout")
	}
	r.pipeline.Layout = layout

	pipeline, err := device.CreateGraphicsPipeline(gpu.GraphicsPipelineCreateInfo{
		VertexShader:   shader.Vertex,
		FragmentShader: shader.Fragment,
		EntryPoint:     shaderEntryPoint,
		VertexLayout:   r.vertexLayout,
		Topology:       gpu.PrimitiveTopologyTriangleList,
		PolygonMode:    gpu.PolygonModeFill,
		CullMode:       gpu.CullModeBack,
		FrontFace:      gpu.FrontFaceClockwise,
		Samples:        1,
		Blend:          blendState(r.config.Blend),
		Extent:         r.swapchain.Extent,
		Layout:         layout,
		RenderPass:     r.pipeline.RenderPass,
		Subpass:        0,
	})
	if err != nil {
		return errors.Wrap(err, "create graphics pipeline")
	}

	r.pipeline.Pipeline = pipeline
	r.pipeline.Extent = r.swapchain.Extent
	r.pipeline.Shader = shader
	r.pipeline.VertexLayout = r.vertexLayout
	return nil
}

func (r *Renderer) destroyGraphicsPipeline() {
	device := r.device.Device

	if r.pipeline.Pipeline.Initialized() {
		device.DestroyPipeline(r.pipeline.Pipeline)
		r.pipeline.Pipeline = gpu.Pipeline{}
	}

	if r.pipeline.Layout.Initialized() {
		device.DestroyPipelineLayout(r.pipeline.Layout)
		r.pipeline.Layout = gpu.PipelineLayout{}
	}

	r.pipeline.Shader = nil
}

// rebuildPipeline recreates only the graphics pipeline. The render pass and
// framebuffers stay, since neither format nor extent changed.
func (r *Renderer) rebuildPipeline() error {
	err := r.device.Device.WaitIdle()
	if err != nil {
		return r.fail(errors.Wrap(err, "wait for device idle"))
	}

	r.destroyGraphicsPipeline()

	err = r.createGraphicsPipeline()
	if err != nil {
		return r.fail(errors.Wrap(err, "rebuild pipeline"))
	}

	r.stats.PipelineRebuilds++
	Logger().Debug("pipeline rebuilt", slog.Int("vertexStride", r.vertexLayout.Stride))

	return nil
}

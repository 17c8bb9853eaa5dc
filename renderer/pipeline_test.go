package renderer

import (
	"testing"

	"github.com/vkngwrapper/frameloop/geometry"
	"github.com/vkngwrapper/frameloop/gpu"
)

func TestRenderPassInfo(t *testing.T) {
	info := renderPassInfo(gpu.FormatB8G8R8A8SRGB)

	if info.LoadOp != gpu.AttachmentLoadOpClear || info.StoreOp != gpu.AttachmentStoreOpStore {
		t.Errorf("expected clear and store, got %v and %v", info.LoadOp, info.StoreOp)
	}
	if info.InitialLayout != gpu.ImageLayoutUndefined || info.FinalLayout != gpu.ImageLayoutPresentSrc {
		t.Errorf("unexpected layouts %v to %v", info.InitialLayout, info.FinalLayout)
	}
	if len(info.Dependencies) != 1 {
		t.Fatalf("expected one dependency, got %d", len(info.Dependencies))
	}

	dep := info.Dependencies[0]
	if dep.SrcSubpass != gpu.SubpassExternal || dep.DstSubpass != 0 {
		t.Errorf("expected an external to 0 dependency, got %d to %d", dep.SrcSubpass, dep.DstSubpass)
	}
	if dep.DstStageMask != gpu.PipelineStageColorAttachmentOutput || dep.DstAccessMask != gpu.AccessColorAttachmentWrite {
		t.Errorf("dependency must guard color attachment writes, got %+v", dep)
	}
}

func TestBlendState(t *testing.T) {
	opaque := blendState(BlendOpaque)
	if opaque.Enabled {
		t.Errorf("opaque blending must be disabled")
	}

	alpha := blendState(BlendAlpha)
	if !alpha.Enabled || alpha.SrcColor != gpu.BlendFactorSrcAlpha || alpha.DstColor != gpu.BlendFactorOneMinusSrcAlpha {
		t.Errorf("unexpected alpha blend state %+v", alpha)
	}
}

func TestPipelineCreateInfo(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Blend = BlendAlpha })

	pipelines := f.device().Pipelines()
	if len(pipelines) != 1 {
		t.Fatalf("expected one pipeline, got %d", len(pipelines))
	}

	info := pipelines[0]
	if info.EntryPoint != "main" {
		t.Errorf("expected entry point main, got %q", info.EntryPoint)
	}
	if info.Topology != gpu.PrimitiveTopologyTriangleList || info.PolygonMode != gpu.PolygonModeFill {
		t.Errorf("expected filled triangle lists")
	}
	if info.CullMode != gpu.CullModeBack || info.FrontFace != gpu.FrontFaceClockwise {
		t.Errorf("expected back-face culling with clockwise front faces")
	}
	if info.Extent != f.renderer.Extent() {
		t.Errorf("pipeline extent %s does not match swapchain %s", info.Extent, f.renderer.Extent())
	}
	if !info.Blend.Enabled {
		t.Errorf("expected alpha blending from the config")
	}
	if !info.VertexLayout.Equal(geometry.Layout()) {
		t.Errorf("expected the default vertex layout, got %+v", info.VertexLayout)
	}

	passes := f.device().RenderPasses()
	if len(passes) != 1 || passes[0].Format != f.renderer.Swapchain().Format.Format {
		t.Errorf("render pass format must match the swapchain, got %+v", passes)
	}
}

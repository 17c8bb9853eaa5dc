package renderer

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/geometry"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/shaders"
)

// newShaderSet creates a set that is released before the renderer shuts down.
func newShaderSet(t *testing.T, f *fixture) *ShaderSet {
	t.Helper()

	set, err := f.renderer.CreateShaderSet(
		spirv(shaders.SPIRVMagic, 0x00010000, 3),
		spirv(shaders.SPIRVMagic, 0x00010000, 4),
	)
	if err != nil {
		t.Fatalf("CreateShaderSet: %v", err)
	}

	t.Cleanup(func() {
		if err := f.renderer.SetActiveShader(nil); err != nil {
			t.Errorf("restore default shader: %v", err)
		}
		if err := f.renderer.DestroyShaderSet(set); err != nil {
			t.Errorf("DestroyShaderSet: %v", err)
		}
	})
	return set
}

func TestCreateShaderSetRejectsBadBytecode(t *testing.T) {
	f := newFixture(t, nil)
	before := f.device().Live()

	cases := map[string][2][]byte{
		"empty vertex":       {nil, testFragmentCode},
		"empty fragment":     {testVertexCode, nil},
		"unaligned":          {testVertexCode[:7], testFragmentCode},
		"bad magic":          {spirv(0xdeadbeef, 1), testFragmentCode},
		"bad fragment magic": {testVertexCode, spirv(0xdeadbeef, 1)},
	}

	for name, code := range cases {
		_, err := f.renderer.CreateShaderSet(code[0], code[1])
		if !errors.Is(err, ErrShaderLoad) {
			t.Errorf("%s: expected ErrShaderLoad, got %v", name, err)
		}
		if f.device().Live() != before {
			t.Errorf("%s: failed shader set left %v", name, f.device().LiveObjects())
		}
	}
}

func TestFragmentModuleFailureReleasesVertex(t *testing.T) {
	f := newFixture(t, nil)
	before := f.device().Live()

	f.instance.FailOn("CreateShaderModule", f.instance.Calls("CreateShaderModule")+2)
	_, err := f.renderer.CreateShaderSet(testVertexCode, testFragmentCode)
	if !errors.Is(err, ErrShaderLoad) {
		t.Fatalf("expected ErrShaderLoad, got %v", err)
	}
	if f.device().Live() != before {
		t.Errorf("vertex module leaked: %v", f.device().LiveObjects())
	}
}

func TestLoadShaderSetMissingFile(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.renderer.LoadShaderSet(
		filepath.Join(t.TempDir(), "none.vert.spv"),
		filepath.Join(t.TempDir(), "none.frag.spv"),
	)
	if !errors.Is(err, ErrShaderLoad) {
		t.Errorf("expected ErrShaderLoad, got %v", err)
	}
}

func TestSetActiveShaderRebuildsPipeline(t *testing.T) {
	f := newFixture(t, nil)
	r := f.renderer

	renderPass := r.Pipeline().RenderPass
	swapchain := r.Swapchain().Swapchain
	set := newShaderSet(t, f)

	if err := r.SetActiveShader(set); err != nil {
		t.Fatalf("SetActiveShader: %v", err)
	}

	stats := r.Stats()
	if stats.PipelineRebuilds != 1 || stats.SwapchainRebuilds != 0 {
		t.Errorf("expected a pipeline-only rebuild, got %+v", stats)
	}
	if r.Pipeline().RenderPass != renderPass || r.Swapchain().Swapchain != swapchain {
		t.Errorf("render pass and swapchain must survive a pipeline rebuild")
	}
	if r.Pipeline().Shader != set {
		t.Errorf("pipeline not built with the new shader set")
	}

	pipelines := f.device().Pipelines()
	if len(pipelines) != 1 || pipelines[0].VertexShader != set.Vertex || pipelines[0].FragmentShader != set.Fragment {
		t.Errorf("expected one live pipeline using the new modules, got %d", len(pipelines))
	}

	// activating the same set again is a no-op
	if err := r.SetActiveShader(set); err != nil {
		t.Fatal(err)
	}
	if got := r.Stats().PipelineRebuilds; got != 1 {
		t.Errorf("expected no further rebuild, got %d", got)
	}

	if err := r.DrawFrame(nil, nil, 0); err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}
}

func TestSetActiveShaderRebuildsSwapchain(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.ShaderSwap = ShaderSwapSwapchain })
	r := f.renderer

	set := newShaderSet(t, f)
	if err := r.SetActiveShader(set); err != nil {
		t.Fatalf("SetActiveShader: %v", err)
	}

	if got := r.Stats().SwapchainRebuilds; got != 1 {
		t.Errorf("expected a swapchain rebuild, got %d", got)
	}
	if r.Pipeline().Shader != set {
		t.Errorf("pipeline not built with the new shader set")
	}
	if got := len(f.device().Swapchains()); got != 1 {
		t.Errorf("expected one live swapchain, got %d", got)
	}
}

func TestDestroyShaderSetInUse(t *testing.T) {
	f := newFixture(t, nil)
	r := f.renderer

	set := newShaderSet(t, f)
	if err := r.SetActiveShader(set); err != nil {
		t.Fatal(err)
	}

	if err := r.DestroyShaderSet(set); err == nil {
		t.Errorf("expected destroying the active set to be refused")
	}
	if err := r.DestroyShaderSet(r.defaultShader); err == nil {
		t.Errorf("expected destroying the default set to be refused")
	}
	if !set.valid() {
		t.Errorf("refused destroy released the modules")
	}
}

func TestDestroyedShaderSetCannotActivate(t *testing.T) {
	f := newFixture(t, nil)
	r := f.renderer

	set, err := r.CreateShaderSet(testVertexCode, testFragmentCode)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.DestroyShaderSet(set); err != nil {
		t.Fatal(err)
	}

	if err := r.SetActiveShader(set); !errors.Is(err, ErrShaderLoad) {
		t.Errorf("expected ErrShaderLoad, got %v", err)
	}
	if r.Failed() != nil {
		t.Errorf("a rejected shader must not fail the renderer")
	}
}

func TestPipelineFollowsVertexLayout(t *testing.T) {
	f := newFixture(t, nil)
	r := f.renderer

	wide := gpu.VertexLayout{
		Stride: 32,
		Attributes: []gpu.VertexAttribute{
			{Location: 0, Format: gpu.FormatR32G32B32SignedFloat, Offset: 0},
			{Location: 1, Format: gpu.FormatR32G32B32SignedFloat, Offset: 16},
		},
	}
	wideBuffer, err := r.UploadVertexBytes(make([]byte, 3*32), wide)
	if err != nil {
		t.Fatal(err)
	}
	defer r.DestroyBuffer(wideBuffer)

	vertices, _ := geometry.Triangle()
	narrowBuffer, err := r.UploadVertexData(vertices)
	if err != nil {
		t.Fatal(err)
	}
	defer r.DestroyBuffer(narrowBuffer)

	if err := r.DrawFrame(wideBuffer, nil, 3); err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}
	if got := r.Pipeline().VertexLayout.Stride; got != 32 {
		t.Errorf("expected the pipeline stride to follow the bound buffer, got %d", got)
	}

	if err := r.DrawFrame(narrowBuffer, nil, 3); err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}
	if got := r.Pipeline().VertexLayout.Stride; got != geometry.Stride {
		t.Errorf("expected stride %d, got %d", geometry.Stride, got)
	}

	if err := r.DrawFrame(narrowBuffer, nil, 3); err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}
	if got := r.Stats().PipelineRebuilds; got != 2 {
		t.Errorf("expected 2 pipeline rebuilds, got %d", got)
	}
}

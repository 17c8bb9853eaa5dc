package gpu

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Enum values match the Vulkan registry so a Vulkan backend can convert by cast.

type Format int32

const (
	FormatUndefined            Format = 0
	FormatR8G8B8A8UnsignedNorm Format = 37
	FormatR8G8B8A8SRGB         Format = 43
	FormatB8G8R8A8UnsignedNorm Format = 44
	FormatB8G8R8A8SRGB         Format = 50
	FormatR32G32SignedFloat    Format = 103
	FormatR32G32B32SignedFloat Format = 106
)

var formatNames = map[Format]string{
	FormatUndefined:            "Undefined",
	FormatR8G8B8A8UnsignedNorm: "R8G8B8A8UnsignedNorm",
	FormatR8G8B8A8SRGB:         "R8G8B8A8SRGB",
	FormatB8G8R8A8UnsignedNorm: "B8G8R8A8UnsignedNorm",
	FormatB8G8R8A8SRGB:         "B8G8R8A8SRGB",
	FormatR32G32SignedFloat:    "R32G32SignedFloat",
	FormatR32G32B32SignedFloat: "R32G32B32SignedFloat",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int32(f))
}

type ColorSpace int32

const (
	ColorSpaceSRGBNonlinear ColorSpace = 0
)

type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "Immediate"
	case PresentModeMailbox:
		return "Mailbox"
	case PresentModeFIFO:
		return "FIFO"
	case PresentModeFIFORelaxed:
		return "FIFORelaxed"
	}
	return fmt.Sprintf("PresentMode(%d)", int32(m))
}

type SurfaceTransform uint32

type SharingMode int32

const (
	SharingModeExclusive  SharingMode = 0
	SharingModeConcurrent SharingMode = 1
)

type BufferUsage uint32

const (
	BufferUsageTransferSrc  BufferUsage = 0x00000001
	BufferUsageTransferDst  BufferUsage = 0x00000002
	BufferUsageIndexBuffer  BufferUsage = 0x00000040
	BufferUsageVertexBuffer BufferUsage = 0x00000080
)

type MemoryProperty uint32

const (
	MemoryPropertyDeviceLocal  MemoryProperty = 0x00000001
	MemoryPropertyHostVisible  MemoryProperty = 0x00000002
	MemoryPropertyHostCoherent MemoryProperty = 0x00000004
)

type IndexType int32

const (
	IndexTypeUInt16 IndexType = 0
	IndexTypeUInt32 IndexType = 1
)

type AttachmentLoadOp int32

const (
	AttachmentLoadOpLoad     AttachmentLoadOp = 0
	AttachmentLoadOpClear    AttachmentLoadOp = 1
	AttachmentLoadOpDontCare AttachmentLoadOp = 2
)

type AttachmentStoreOp int32

const (
	AttachmentStoreOpStore    AttachmentStoreOp = 0
	AttachmentStoreOpDontCare AttachmentStoreOp = 1
)

type ImageLayout int32

const (
	ImageLayoutUndefined              ImageLayout = 0
	ImageLayoutColorAttachmentOptimal ImageLayout = 2
	ImageLayoutPresentSrc             ImageLayout = 1000001002
)

type PipelineStage uint32

const (
	PipelineStageTopOfPipe             PipelineStage = 0x00000001
	PipelineStageColorAttachmentOutput PipelineStage = 0x00000400
	PipelineStageTransfer              PipelineStage = 0x00001000
)

type Access uint32

const (
	AccessColorAttachmentWrite Access = 0x00000100
	AccessTransferWrite        Access = 0x00001000
)

type PrimitiveTopology int32

const (
	PrimitiveTopologyTriangleList PrimitiveTopology = 3
)

type PolygonMode int32

const (
	PolygonModeFill PolygonMode = 0
)

type CullMode uint32

const (
	CullModeNone CullMode = 0
	CullModeBack CullMode = 2
)

type FrontFace int32

const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

type BlendFactor int32

const (
	BlendFactorZero             BlendFactor = 0
	BlendFactorOne              BlendFactor = 1
	BlendFactorSrcAlpha         BlendFactor = 6
	BlendFactorOneMinusSrcAlpha BlendFactor = 7
)

type BlendOp int32

const (
	BlendOpAdd BlendOp = 0
)

// SubpassExternal is VK_SUBPASS_EXTERNAL.
const SubpassExternal = -1

// NoTimeout makes a wait block until the GPU answers.
const NoTimeout = time.Duration(math.MaxInt64)

// Result classifies the outcome of waits, acquires and presents. Only the
// classes the renderer reacts to differently are distinguished.
type Result int

const (
	Success Result = iota
	Suboptimal
	NotReady
	Timeout
	OutOfDate
	SurfaceLost
	DeviceLost
	Failure
)

func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case Suboptimal:
		return "Suboptimal"
	case NotReady:
		return "NotReady"
	case Timeout:
		return "Timeout"
	case OutOfDate:
		return "OutOfDate"
	case SurfaceLost:
		return "SurfaceLost"
	case DeviceLost:
		return "DeviceLost"
	}
	return "Failure"
}

type Extent2D struct {
	Width  int
	Height int
}

// UndefinedExtent is what a surface reports when the swapchain decides its own size.
var UndefinedExtent = Extent2D{Width: -1, Height: -1}

// Defined is false for UndefinedExtent and for the raw 0xFFFFFFFF width a
// driver may pass through unconverted.
func (e Extent2D) Defined() bool {
	return e.Width >= 0 && int64(e.Width) != math.MaxUint32
}

func (e Extent2D) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

type QueueFamily struct {
	Graphics   bool
	QueueCount int
}

type SurfaceCapabilities struct {
	MinImageCount    int
	MaxImageCount    int
	CurrentExtent    Extent2D
	MinImageExtent   Extent2D
	MaxImageExtent   Extent2D
	CurrentTransform SurfaceTransform
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type DeviceInfo struct {
	Name              string
	Type              string
	PipelineCacheUUID uuid.UUID
}

type MemoryType struct {
	Properties MemoryProperty
	HeapIndex  int
}

type MemoryProperties struct {
	Types []MemoryType
}

type MemoryRequirements struct {
	Size           int
	Alignment      int
	MemoryTypeBits uint32
}

type DeviceCreateInfo struct {
	QueueFamilies []int
	Extensions    []string
}

type SwapchainCreateInfo struct {
	Surface            Surface
	MinImageCount      int
	Format             Format
	ColorSpace         ColorSpace
	Extent             Extent2D
	SharingMode        SharingMode
	QueueFamilyIndices []int
	PreTransform       SurfaceTransform
	PresentMode        PresentMode
	Clipped            bool
}

type SubpassDependency struct {
	SrcSubpass    int
	DstSubpass    int
	SrcStageMask  PipelineStage
	DstStageMask  PipelineStage
	SrcAccessMask Access
	DstAccessMask Access
}

// RenderPassCreateInfo describes a single-subpass pass writing one color attachment.
type RenderPassCreateInfo struct {
	Format        Format
	Samples       int
	LoadOp        AttachmentLoadOp
	StoreOp       AttachmentStoreOp
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
	SubpassLayout ImageLayout
	Dependencies  []SubpassDependency
}

type VertexAttribute struct {
	Location int
	Format   Format
	Offset   int
}

// VertexLayout is one per-vertex binding of interleaved attributes.
type VertexLayout struct {
	Binding    int
	Stride     int
	Attributes []VertexAttribute
}

// Equal reports whether two layouts describe the same memory.
func (l VertexLayout) Equal(other VertexLayout) bool {
	if l.Binding != other.Binding || l.Stride != other.Stride || len(l.Attributes) != len(other.Attributes) {
		return false
	}
	for i := range l.Attributes {
		if l.Attributes[i] != other.Attributes[i] {
			return false
		}
	}
	return true
}

type BlendState struct {
	Enabled  bool
	SrcColor BlendFactor
	DstColor BlendFactor
	ColorOp  BlendOp
	SrcAlpha BlendFactor
	DstAlpha BlendFactor
	AlphaOp  BlendOp
}

type GraphicsPipelineCreateInfo struct {
	VertexShader   ShaderModule
	FragmentShader ShaderModule
	EntryPoint     string
	VertexLayout   VertexLayout
	Topology       PrimitiveTopology
	PolygonMode    PolygonMode
	CullMode       CullMode
	FrontFace      FrontFace
	Samples        int
	Blend          BlendState
	Extent         Extent2D
	Layout         PipelineLayout
	RenderPass     RenderPass
	Subpass        int
}

type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent2D
	ClearColor  [4]float32
}

type BufferCopy struct {
	SrcOffset int
	DstOffset int
	Size      int
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     int
}

package vkng

import (
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/frameloop/gpu"
)

type Device struct {
	deviceDriver       core1_0.CoreDeviceDriver
	swapchainExtension khr_swapchain.ExtensionDriver
}

var _ gpu.Device = (*Device)(nil)

func newDevice(deviceDriver core1_0.CoreDeviceDriver) *Device {
	return &Device{
		deviceDriver:       deviceDriver,
		swapchainExtension: khr_swapchain.CreateExtensionDriverFromCoreDriver(deviceDriver),
	}
}

func (d *Device) Queue(queueFamily int) gpu.Queue {
	return gpu.Queue{Handle: gpu.Wrap(d.deviceDriver.GetQueue(queueFamily, 0))}
}

func (d *Device) WaitIdle() error {
	_, err := d.deviceDriver.DeviceWaitIdle()
	if err != nil {
		return errors.Wrap(err, "wait for device idle")
	}
	return nil
}

func (d *Device) Destroy() {
	if d.deviceDriver != nil {
		d.deviceDriver.DestroyDevice(nil)
		d.deviceDriver = nil
	}
}

func (d *Device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, error) {
	swapchain, _, err := d.swapchainExtension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: native[khr_surface.Surface](info.Surface.Handle),

		MinImageCount:    info.MinImageCount,
		ImageFormat:      core1_0.Format(info.Format),
		ImageColorSpace:  khr_surface.ColorSpace(info.ColorSpace),
		ImageExtent:      vkExtent(info.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   core1_0.SharingMode(info.SharingMode),
		QueueFamilyIndices: info.QueueFamilyIndices,

		PreTransform:   khr_surface.SurfaceTransformFlags(info.PreTransform),
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    khr_surface.PresentMode(info.PresentMode),
		Clipped:        info.Clipped,
	})
	if err != nil {
		return gpu.Swapchain{}, errors.Wrap(err, "create swapchain")
	}
	return gpu.Swapchain{Handle: gpu.Wrap(swapchain)}, nil
}

func (d *Device) SwapchainImages(swapchain gpu.Swapchain) ([]gpu.Image, error) {
	images, _, err := d.swapchainExtension.GetSwapchainImages(native[khr_swapchain.Swapchain](swapchain.Handle))
	if err != nil {
		return nil, errors.Wrap(err, "get swapchain images")
	}

	out := make([]gpu.Image, 0, len(images))
	for _, image := range images {
		out = append(out, gpu.Image{Handle: gpu.Wrap(image)})
	}
	return out, nil
}

func (d *Device) DestroySwapchain(swapchain gpu.Swapchain) {
	d.swapchainExtension.DestroySwapchain(native[khr_swapchain.Swapchain](swapchain.Handle), nil)
}

func (d *Device) CreateImageView(image gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	imageView, _, err := d.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    native[core1_0.Image](image.Handle),
		ViewType: core1_0.ImageViewType2D,
		Format:   core1_0.Format(format),
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return gpu.ImageView{}, errors.Wrap(err, "create image view")
	}
	return gpu.ImageView{Handle: gpu.Wrap(imageView)}, nil
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	d.deviceDriver.DestroyImageView(native[core1_0.ImageView](view.Handle), nil)
}

func (d *Device) CreateFramebuffer(renderPass gpu.RenderPass, attachments []gpu.ImageView, extent gpu.Extent2D) (gpu.Framebuffer, error) {
	views := make([]core1_0.ImageView, 0, len(attachments))
	for _, view := range attachments {
		views = append(views, native[core1_0.ImageView](view.Handle))
	}

	framebuffer, _, err := d.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  native[core1_0.RenderPass](renderPass.Handle),
		Layers:      1,
		Attachments: views,
		Width:       extent.Width,
		Height:      extent.Height,
	})
	if err != nil {
		return gpu.Framebuffer{}, errors.Wrap(err, "create framebuffer")
	}
	return gpu.Framebuffer{Handle: gpu.Wrap(framebuffer)}, nil
}

func (d *Device) DestroyFramebuffer(framebuffer gpu.Framebuffer) {
	d.deviceDriver.DestroyFramebuffer(native[core1_0.Framebuffer](framebuffer.Handle), nil)
}

func (d *Device) AcquireNextImage(swapchain gpu.Swapchain, wait time.Duration, semaphore gpu.Semaphore) (int, gpu.Result, error) {
	signal := native[core1_0.Semaphore](semaphore.Handle)
	imageIndex, res, err := d.swapchainExtension.AcquireNextImage(native[khr_swapchain.Swapchain](swapchain.Handle), timeout(wait), &signal, nil)

	r, err := result(res, err)
	return imageIndex, r, err
}

func (d *Device) QueuePresent(queue gpu.Queue, info gpu.PresentInfo) (gpu.Result, error) {
	waitSemaphores := make([]core1_0.Semaphore, 0, len(info.WaitSemaphores))
	for _, semaphore := range info.WaitSemaphores {
		waitSemaphores = append(waitSemaphores, native[core1_0.Semaphore](semaphore.Handle))
	}

	res, err := d.swapchainExtension.QueuePresent(native[core1_0.Queue](queue.Handle), khr_swapchain.PresentInfo{
		WaitSemaphores: waitSemaphores,
		Swapchains:     []khr_swapchain.Swapchain{native[khr_swapchain.Swapchain](info.Swapchain.Handle)},
		ImageIndices:   []int{info.ImageIndex},
	})
	return result(res, err)
}

func (d *Device) CreateRenderPass(info gpu.RenderPassCreateInfo) (gpu.RenderPass, error) {
	var dependencies []core1_0.SubpassDependency
	for _, dependency := range info.Dependencies {
		srcSubpass := dependency.SrcSubpass
		if srcSubpass == gpu.SubpassExternal {
			srcSubpass = core1_0.SubpassExternal
		}

		dependencies = append(dependencies, core1_0.SubpassDependency{
			SrcSubpass:    srcSubpass,
			DstSubpass:    dependency.DstSubpass,
			SrcStageMask:  core1_0.PipelineStageFlags(dependency.SrcStageMask),
			DstStageMask:  core1_0.PipelineStageFlags(dependency.DstStageMask),
			SrcAccessMask: core1_0.AccessFlags(dependency.SrcAccessMask),
			DstAccessMask: core1_0.AccessFlags(dependency.DstAccessMask),
		})
	}

	renderPass, _, err := d.deviceDriver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         core1_0.Format(info.Format),
				Samples:        core1_0.SampleCountFlags(info.Samples),
				LoadOp:         core1_0.AttachmentLoadOp(info.LoadOp),
				StoreOp:        core1_0.AttachmentStoreOp(info.StoreOp),
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayout(info.InitialLayout),
				FinalLayout:    core1_0.ImageLayout(info.FinalLayout),
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayout(info.SubpassLayout),
					},
				},
			},
		},
		SubpassDependencies: dependencies,
	})
	if err != nil {
		return gpu.RenderPass{}, errors.Wrap(err, "create render pass")
	}
	return gpu.RenderPass{Handle: gpu.Wrap(renderPass)}, nil
}

func (d *Device) DestroyRenderPass(renderPass gpu.RenderPass) {
	d.deviceDriver.DestroyRenderPass(native[core1_0.RenderPass](renderPass.Handle), nil)
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	module, _, err := d.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	if err != nil {
		return gpu.ShaderModule{}, errors.Wrap(err, "create shader module")
	}
	return gpu.ShaderModule{Handle: gpu.Wrap(module)}, nil
}

func (d *Device) DestroyShaderModule(module gpu.ShaderModule) {
	d.deviceDriver.DestroyShaderModule(native[core1_0.ShaderModule](module.Handle), nil)
}

func (d *Device) CreatePipelineLayout() (gpu.PipelineLayout, error) {
	layout, _, err := d.deviceDriver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{})
	if err != nil {
		return gpu.PipelineLayout{}, errors.Wrap(err, "create pipeline layout")
	}
	return gpu.PipelineLayout{Handle: gpu.Wrap(layout)}, nil
}

func (d *Device) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	d.deviceDriver.DestroyPipelineLayout(native[core1_0.PipelineLayout](layout.Handle), nil)
}

func vertexInputState(layout gpu.VertexLayout) *core1_0.PipelineVertexInputStateCreateInfo {
	attributes := make([]core1_0.VertexInputAttributeDescription, 0, len(layout.Attributes))
	for _, attribute := range layout.Attributes {
		attributes = append(attributes, core1_0.VertexInputAttributeDescription{
			Binding:  layout.Binding,
			Location: uint32(attribute.Location),
			Format:   core1_0.Format(attribute.Format),
			Offset:   attribute.Offset,
		})
	}

	return &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions: []core1_0.VertexInputBindingDescription{
			{
				Binding:   layout.Binding,
				Stride:    layout.Stride,
				InputRate: core1_0.VertexInputRateVertex,
			},
		},
		VertexAttributeDescriptions: attributes,
	}
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: native[core1_0.ShaderModule](info.VertexShader.Handle),
		Name:   info.EntryPoint,
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: native[core1_0.ShaderModule](info.FragmentShader.Handle),
		Name:   info.EntryPoint,
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopology(info.Topology),
		PrimitiveRestartEnable: false,
	}

	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{
			{
				X:        0,
				Y:        0,
				Width:    float32(info.Extent.Width),
				Height:   float32(info.Extent.Height),
				MinDepth: 0,
				MaxDepth: 1,
			},
		},
		Scissors: []core1_0.Rect2D{
			{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: vkExtent(info.Extent),
			},
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonMode(info.PolygonMode),
		CullMode:    core1_0.CullModeFlags(info.CullMode),
		FrontFace:   core1_0.FrontFace(info.FrontFace),

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.SampleCountFlags(info.Samples),
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:        info.Blend.Enabled,
				SrcColorBlendFactor: core1_0.BlendFactor(info.Blend.SrcColor),
				DstColorBlendFactor: core1_0.BlendFactor(info.Blend.DstColor),
				ColorBlendOp:        core1_0.BlendOp(info.Blend.ColorOp),
				SrcAlphaBlendFactor: core1_0.BlendFactor(info.Blend.SrcAlpha),
				DstAlphaBlendFactor: core1_0.BlendFactor(info.Blend.DstAlpha),
				AlphaBlendOp:        core1_0.BlendOp(info.Blend.AlphaOp),
				ColorWriteMask:      core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	pipelines, _, err := d.deviceDriver.CreateGraphicsPipelines(nil, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInputState(info.VertexLayout),
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			ColorBlendState:    colorBlend,
			Layout:             native[core1_0.PipelineLayout](info.Layout.Handle),
			RenderPass:         native[core1_0.RenderPass](info.RenderPass.Handle),
			Subpass:            info.Subpass,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		return gpu.Pipeline{}, errors.Wrap(err, "create graphics pipeline")
	}
	return gpu.Pipeline{Handle: gpu.Wrap(pipelines[0])}, nil
}

func (d *Device) DestroyPipeline(pipeline gpu.Pipeline) {
	d.deviceDriver.DestroyPipeline(native[core1_0.Pipeline](pipeline.Handle), nil)
}

func (d *Device) CreateCommandPool(queueFamily int) (gpu.CommandPool, error) {
	pool, _, err := d.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: queueFamily,
	})
	if err != nil {
		return gpu.CommandPool{}, errors.Wrap(err, "create command pool")
	}
	return gpu.CommandPool{Handle: gpu.Wrap(pool)}, nil
}

func (d *Device) DestroyCommandPool(pool gpu.CommandPool) {
	d.deviceDriver.DestroyCommandPool(native[core1_0.CommandPool](pool.Handle), nil)
}

func (d *Device) AllocateCommandBuffers(pool gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	buffers, _, err := d.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        native[core1_0.CommandPool](pool.Handle),
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate command buffers")
	}

	out := make([]gpu.CommandBuffer, 0, len(buffers))
	for _, buffer := range buffers {
		out = append(out, gpu.CommandBuffer{Handle: gpu.Wrap(buffer)})
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(buffers ...gpu.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}

	commandBuffers := make([]core1_0.CommandBuffer, 0, len(buffers))
	for _, buffer := range buffers {
		commandBuffers = append(commandBuffers, native[core1_0.CommandBuffer](buffer.Handle))
	}
	d.deviceDriver.FreeCommandBuffers(commandBuffers...)
}

func (d *Device) BeginCommandBuffer(buffer gpu.CommandBuffer, oneTimeSubmit bool) error {
	var flags core1_0.CommandBufferUsageFlags
	if oneTimeSubmit {
		flags = core1_0.CommandBufferUsageOneTimeSubmit
	}

	_, err := d.deviceDriver.BeginCommandBuffer(native[core1_0.CommandBuffer](buffer.Handle), core1_0.CommandBufferBeginInfo{
		Flags: flags,
	})
	if err != nil {
		return errors.Wrap(err, "begin command buffer")
	}
	return nil
}

func (d *Device) EndCommandBuffer(buffer gpu.CommandBuffer) error {
	_, err := d.deviceDriver.EndCommandBuffer(native[core1_0.CommandBuffer](buffer.Handle))
	if err != nil {
		return errors.Wrap(err, "end command buffer")
	}
	return nil
}

func (d *Device) ResetCommandBuffer(buffer gpu.CommandBuffer) error {
	_, err := d.deviceDriver.ResetCommandBuffer(native[core1_0.CommandBuffer](buffer.Handle), 0)
	if err != nil {
		return errors.Wrap(err, "reset command buffer")
	}
	return nil
}

func (d *Device) CmdBeginRenderPass(buffer gpu.CommandBuffer, info gpu.RenderPassBeginInfo) error {
	return d.deviceDriver.CmdBeginRenderPass(native[core1_0.CommandBuffer](buffer.Handle), core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  native[core1_0.RenderPass](info.RenderPass.Handle),
			Framebuffer: native[core1_0.Framebuffer](info.Framebuffer.Handle),
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: vkExtent(info.Extent),
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat(info.ClearColor),
			},
		})
}

func (d *Device) CmdBindPipeline(buffer gpu.CommandBuffer, pipeline gpu.Pipeline) {
	d.deviceDriver.CmdBindPipeline(native[core1_0.CommandBuffer](buffer.Handle), core1_0.PipelineBindPointGraphics, native[core1_0.Pipeline](pipeline.Handle))
}

func (d *Device) CmdBindVertexBuffers(buffer gpu.CommandBuffer, buffers []gpu.Buffer, offsets []int) {
	vertexBuffers := make([]core1_0.Buffer, 0, len(buffers))
	for _, b := range buffers {
		vertexBuffers = append(vertexBuffers, native[core1_0.Buffer](b.Handle))
	}
	d.deviceDriver.CmdBindVertexBuffers(native[core1_0.CommandBuffer](buffer.Handle), 0, vertexBuffers, offsets)
}

func (d *Device) CmdBindIndexBuffer(buffer gpu.CommandBuffer, indexBuffer gpu.Buffer, offset int, indexType gpu.IndexType) {
	d.deviceDriver.CmdBindIndexBuffer(native[core1_0.CommandBuffer](buffer.Handle), native[core1_0.Buffer](indexBuffer.Handle), offset, core1_0.IndexType(indexType))
}

func (d *Device) CmdDraw(buffer gpu.CommandBuffer, vertexCount, instanceCount int) {
	d.deviceDriver.CmdDraw(native[core1_0.CommandBuffer](buffer.Handle), vertexCount, instanceCount, 0, 0)
}

func (d *Device) CmdDrawIndexed(buffer gpu.CommandBuffer, indexCount, instanceCount int) {
	d.deviceDriver.CmdDrawIndexed(native[core1_0.CommandBuffer](buffer.Handle), indexCount, instanceCount, 0, 0, 0)
}

func (d *Device) CmdEndRenderPass(buffer gpu.CommandBuffer) {
	d.deviceDriver.CmdEndRenderPass(native[core1_0.CommandBuffer](buffer.Handle))
}

func (d *Device) CmdCopyBuffer(buffer gpu.CommandBuffer, src, dst gpu.Buffer, regions ...gpu.BufferCopy) error {
	copies := make([]core1_0.BufferCopy, 0, len(regions))
	for _, region := range regions {
		copies = append(copies, core1_0.BufferCopy{
			SrcOffset: region.SrcOffset,
			DstOffset: region.DstOffset,
			Size:      region.Size,
		})
	}

	return d.deviceDriver.CmdCopyBuffer(native[core1_0.CommandBuffer](buffer.Handle), native[core1_0.Buffer](src.Handle), native[core1_0.Buffer](dst.Handle), copies...)
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	semaphore, _, err := d.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return gpu.Semaphore{}, errors.Wrap(err, "create semaphore")
	}
	return gpu.Semaphore{Handle: gpu.Wrap(semaphore)}, nil
}

func (d *Device) DestroySemaphore(semaphore gpu.Semaphore) {
	d.deviceDriver.DestroySemaphore(native[core1_0.Semaphore](semaphore.Handle), nil)
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	var flags core1_0.FenceCreateFlags
	if signaled {
		flags = core1_0.FenceCreateSignaled
	}

	fence, _, err := d.deviceDriver.CreateFence(nil, core1_0.FenceCreateInfo{
		Flags: flags,
	})
	if err != nil {
		return gpu.Fence{}, errors.Wrap(err, "create fence")
	}
	return gpu.Fence{Handle: gpu.Wrap(fence)}, nil
}

func (d *Device) DestroyFence(fence gpu.Fence) {
	d.deviceDriver.DestroyFence(native[core1_0.Fence](fence.Handle), nil)
}

func fences(handles []gpu.Fence) []core1_0.Fence {
	out := make([]core1_0.Fence, 0, len(handles))
	for _, fence := range handles {
		out = append(out, native[core1_0.Fence](fence.Handle))
	}
	return out
}

func (d *Device) WaitForFences(wait time.Duration, handles ...gpu.Fence) (gpu.Result, error) {
	res, err := d.deviceDriver.WaitForFences(true, timeout(wait), fences(handles)...)
	return result(res, err)
}

func (d *Device) ResetFences(handles ...gpu.Fence) error {
	_, err := d.deviceDriver.ResetFences(fences(handles)...)
	if err != nil {
		return errors.Wrap(err, "reset fences")
	}
	return nil
}

func (d *Device) QueueSubmit(queue gpu.Queue, fence gpu.Fence, info gpu.SubmitInfo) (gpu.Result, error) {
	submit := core1_0.SubmitInfo{}
	for _, semaphore := range info.WaitSemaphores {
		submit.WaitSemaphores = append(submit.WaitSemaphores, native[core1_0.Semaphore](semaphore.Handle))
	}
	for _, stage := range info.WaitStages {
		submit.WaitDstStageMask = append(submit.WaitDstStageMask, core1_0.PipelineStageFlags(stage))
	}
	for _, buffer := range info.CommandBuffers {
		submit.CommandBuffers = append(submit.CommandBuffers, native[core1_0.CommandBuffer](buffer.Handle))
	}
	for _, semaphore := range info.SignalSemaphores {
		submit.SignalSemaphores = append(submit.SignalSemaphores, native[core1_0.Semaphore](semaphore.Handle))
	}

	var signal *core1_0.Fence
	if fence.Initialized() {
		f := native[core1_0.Fence](fence.Handle)
		signal = &f
	}

	res, err := d.deviceDriver.QueueSubmit(native[core1_0.Queue](queue.Handle), signal, submit)
	return result(res, err)
}

func (d *Device) QueueWaitIdle(queue gpu.Queue) error {
	_, err := d.deviceDriver.QueueWaitIdle(native[core1_0.Queue](queue.Handle))
	if err != nil {
		return errors.Wrap(err, "wait for queue idle")
	}
	return nil
}

func (d *Device) CreateBuffer(size int, usage gpu.BufferUsage) (gpu.Buffer, error) {
	buffer, _, err := d.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       core1_0.BufferUsageFlags(usage),
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return gpu.Buffer{}, errors.Wrap(err, "create buffer")
	}
	return gpu.Buffer{Handle: gpu.Wrap(buffer)}, nil
}

func (d *Device) DestroyBuffer(buffer gpu.Buffer) {
	d.deviceDriver.DestroyBuffer(native[core1_0.Buffer](buffer.Handle), nil)
}

func (d *Device) BufferMemoryRequirements(buffer gpu.Buffer) gpu.MemoryRequirements {
	memRequirements := d.deviceDriver.GetBufferMemoryRequirements(native[core1_0.Buffer](buffer.Handle))
	return gpu.MemoryRequirements{
		Size:           memRequirements.Size,
		Alignment:      memRequirements.Alignment,
		MemoryTypeBits: memRequirements.MemoryTypeBits,
	}
}

func (d *Device) AllocateMemory(size int, memoryType int) (gpu.DeviceMemory, error) {
	memory, _, err := d.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: memoryType,
	})
	if err != nil {
		return gpu.DeviceMemory{}, errors.Wrap(err, "allocate memory")
	}
	return gpu.DeviceMemory{Handle: gpu.Wrap(memory)}, nil
}

func (d *Device) FreeMemory(memory gpu.DeviceMemory) {
	d.deviceDriver.FreeMemory(native[core1_0.DeviceMemory](memory.Handle), nil)
}

func (d *Device) BindBufferMemory(buffer gpu.Buffer, memory gpu.DeviceMemory) error {
	_, err := d.deviceDriver.BindBufferMemory(native[core1_0.Buffer](buffer.Handle), native[core1_0.DeviceMemory](memory.Handle), 0)
	if err != nil {
		return errors.Wrap(err, "bind buffer memory")
	}
	return nil
}

func (d *Device) MapMemory(memory gpu.DeviceMemory, offset, size int) ([]byte, error) {
	memoryPtr, _, err := d.deviceDriver.MapMemory(native[core1_0.DeviceMemory](memory.Handle), offset, size, 0)
	if err != nil {
		return nil, errors.Wrap(err, "map memory")
	}
	return unsafe.Slice((*byte)(memoryPtr), size), nil
}

func (d *Device) UnmapMemory(memory gpu.DeviceMemory) {
	d.deviceDriver.UnmapMemory(native[core1_0.DeviceMemory](memory.Handle))
}

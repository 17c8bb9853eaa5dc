package renderer

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/gpu"
)

// SwapchainState is the presentable image chain and the per-image objects
// derived from it. Its extent always matches the drawable size it was built
// for; when the drawable changes the whole state is rebuilt.
type SwapchainState struct {
	Swapchain    gpu.Swapchain
	Images       []gpu.Image
	ImageViews   []gpu.ImageView
	Framebuffers []gpu.Framebuffer

	Format      gpu.SurfaceFormat
	PresentMode gpu.PresentMode
	Extent      gpu.Extent2D
}

func chooseSwapSurfaceFormat(availableFormats []gpu.SurfaceFormat) gpu.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == gpu.FormatB8G8R8A8SRGB && format.ColorSpace == gpu.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

func chooseSwapPresentMode(availablePresentModes []gpu.PresentMode, preferVSync bool) gpu.PresentMode {
	if preferVSync {
		return gpu.PresentModeFIFO
	}

	for _, presentMode := range availablePresentModes {
		if presentMode == gpu.PresentModeMailbox {
			return presentMode
		}
	}

	return gpu.PresentModeFIFO
}

func chooseSwapExtent(capabilities gpu.SurfaceCapabilities, width, height int) gpu.Extent2D {
	if capabilities.CurrentExtent.Defined() {
		return capabilities.CurrentExtent
	}

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return gpu.Extent2D{Width: width, Height: height}
}

// chooseImageCount asks for one image more than the minimum. A zero maximum
// means the surface sets no upper bound.
func chooseImageCount(capabilities gpu.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func (r *Renderer) createSwapchain() error {
	instance := r.instance
	physicalDevice := r.device.PhysicalDevice

	capabilities, err := instance.SurfaceCapabilities(physicalDevice)
	if err != nil {
		return errors.Wrap(err, "query surface capabilities")
	}
	formats, err := instance.SurfaceFormats(physicalDevice)
	if err != nil {
		return errors.Wrap(err, "query surface formats")
	}
	presentModes, err := instance.PresentModes(physicalDevice)
	if err != nil {
		return errors.Wrap(err, "query present modes")
	}
	if len(formats) == 0 || len(presentModes) == 0 {
		return errors.New("surface reports no formats or present modes")
	}

	width, height := r.window.DrawableSize()
	surfaceFormat := chooseSwapSurfaceFormat(formats)
	presentMode := chooseSwapPresentMode(presentModes, r.config.PreferVSync)
	extent := chooseSwapExtent(capabilities, width, height)

	sharingMode := gpu.SharingModeExclusive
	var queueFamilyIndices []int
	if r.device.SeparatePresentFamily() {
		sharingMode = gpu.SharingModeConcurrent
		queueFamilyIndices = r.device.QueueFamilies()
	}

	device := r.device.Device
	swapchain, err := device.CreateSwapchain(gpu.SwapchainCreateInfo{
		Surface:            instance.Surface(),
		MinImageCount:      chooseImageCount(capabilities),
		Format:             surfaceFormat.Format,
		ColorSpace:         surfaceFormat.ColorSpace,
		Extent:             extent,
		SharingMode:        sharingMode,
		QueueFamilyIndices: queueFamilyIndices,
		PreTransform:       capabilities.CurrentTransform,
		PresentMode:        presentMode,
		Clipped:            true,
	})
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}

	r.swapchain = SwapchainState{
		Swapchain:   swapchain,
		Format:      surfaceFormat,
		PresentMode: presentMode,
		Extent:      extent,
	}

	images, err := device.SwapchainImages(swapchain)
	if err != nil {
		return errors.Wrap(err, "get swapchain images")
	}
	r.swapchain.Images = images

	for _, image := range images {
		view, err := device.CreateImageView(image, surfaceFormat.Format)
		if err != nil {
			return errors.Wrap(err, "create image view")
		}
		r.swapchain.ImageViews = append(r.swapchain.ImageViews, view)
	}

	Logger().Info("swapchain created",
		slog.String("extent", extent.String()),
		slog.String("format", surfaceFormat.Format.String()),
		slog.String("presentMode", presentMode.String()),
		slog.Int("images", len(images)))

	return nil
}

func (r *Renderer) createFramebuffers() error {
	for _, view := range r.swapchain.ImageViews {
		framebuffer, err := r.device.Device.CreateFramebuffer(r.pipeline.RenderPass, []gpu.ImageView{view}, r.swapchain.Extent)
		if err != nil {
			return errors.Wrap(err, "create framebuffer")
		}
		r.swapchain.Framebuffers = append(r.swapchain.Framebuffers, framebuffer)
	}

	return nil
}

// createSwapchainGroup builds everything that depends on the drawable:
// swapchain, image views, render pass, pipeline and framebuffers.
func (r *Renderer) createSwapchainGroup() error {
	err := r.createSwapchain()
	if err != nil {
		return err
	}

	err = r.createRenderPass()
	if err != nil {
		return err
	}

	err = r.createGraphicsPipeline()
	if err != nil {
		return err
	}

	return r.createFramebuffers()
}

// cleanupSwapchain destroys the swapchain group in reverse creation order.
// Partially built groups are handled.
func (r *Renderer) cleanupSwapchain() {
	device := r.device.Device

	for _, framebuffer := range r.swapchain.Framebuffers {
		device.DestroyFramebuffer(framebuffer)
	}

	r.destroyGraphicsPipeline()

	if r.pipeline.RenderPass.Initialized() {
		device.DestroyRenderPass(r.pipeline.RenderPass)
		r.pipeline.RenderPass = gpu.RenderPass{}
	}

	for _, imageView := range r.swapchain.ImageViews {
		device.DestroyImageView(imageView)
	}

	if r.swapchain.Swapchain.Initialized() {
		device.DestroySwapchain(r.swapchain.Swapchain)
	}

	r.swapchain = SwapchainState{}
}

// rebuildSwapchain is where every invalidation ends up: resize, out-of-date
// acquire or present, and shader swaps under ShaderSwapSwapchain. While the
// drawable is empty it blocks on window events. A failure leaves the renderer
// failed.
func (r *Renderer) rebuildSwapchain() error {
	err := r.device.Device.WaitIdle()
	if err != nil {
		return r.fail(errors.Wrap(err, "wait for device idle"))
	}

	r.cleanupSwapchain()

	width, height := r.window.DrawableSize()
	for width == 0 || height == 0 {
		r.window.WaitEvents()
		width, height = r.window.DrawableSize()
	}

	err = r.createSwapchainGroup()
	if err != nil {
		return r.fail(errors.Wrap(err, "rebuild swapchain"))
	}

	r.stale = false
	r.stats.SwapchainRebuilds++
	Logger().Debug("swapchain rebuilt", slog.String("extent", r.swapchain.Extent.String()))

	return nil
}

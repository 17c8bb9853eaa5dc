package gputest

import (
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/gpu"
)

type object struct {
	kind string
	id   int
}

func (o *object) base() *object { return o }

func (o *object) String() string {
	return fmt.Sprintf("%s#%d", o.kind, o.id)
}

type tracked interface {
	base() *object
}

type queue struct {
	family int
}

type fence struct {
	object
	signaled bool
	pending  bool
}

type semaphore struct {
	object
	signaled bool
}

type pendingCopy struct {
	src, dst *buffer
	region   gpu.BufferCopy
}

type commandBuffer struct {
	object
	pool *object

	recording    bool
	inRenderPass bool
	executable   bool
	pending      bool
	fence        *fence

	commands []string
	refs     []*object
	copies   []pendingCopy
}

type buffer struct {
	object
	size   int
	usage  gpu.BufferUsage
	memory *memory
}

type memory struct {
	object
	typeIndex int
	data      []byte
	mapped    bool
}

type swapchain struct {
	object
	info   gpu.SwapchainCreateInfo
	images []gpu.Image
	next   int
}

type framebuffer struct {
	object
	extent gpu.Extent2D
}

type renderPass struct {
	object
	info gpu.RenderPassCreateInfo
}

type pipeline struct {
	object
	info gpu.GraphicsPipelineCreateInfo
}

// Recording is the command stream of one submitted command buffer.
type Recording struct {
	CommandBuffer string
	Commands      []string
}

// Device implements gpu.Device in memory.
type Device struct {
	// HangFences makes every wait on unsignaled fences time out.
	HangFences bool
	// Lost makes waits, submits, acquires and presents report a lost device.
	Lost bool

	// Events is a log of synchronization-relevant calls.
	Events []string
	// Submitted holds every command buffer recording in submission order.
	Submitted []Recording

	instance  *Instance
	specIndex int
	info      gpu.DeviceCreateInfo

	nextID    int
	live      map[*object]tracked
	queues    map[int]gpu.Queue
	pending   []*commandBuffer
	pipelines []*pipeline

	acquireResults []gpu.Result
	presentResults []gpu.Result

	misuses   []string
	destroyed bool
}

var _ gpu.Device = (*Device)(nil)

func newDevice(instance *Instance, specIndex int, info gpu.DeviceCreateInfo) *Device {
	return &Device{
		instance:  instance,
		specIndex: specIndex,
		info:      info,
		live:      map[*object]tracked{},
		queues:    map[int]gpu.Queue{},
	}
}

func (d *Device) spec() *DeviceSpec {
	return &d.instance.Specs[d.specIndex]
}

func (d *Device) misuse(format string, args ...any) {
	d.misuses = append(d.misuses, fmt.Sprintf(format, args...))
}

func (d *Device) event(format string, args ...any) {
	d.Events = append(d.Events, fmt.Sprintf(format, args...))
}

func (d *Device) track(t tracked, kind string) {
	d.nextID++
	obj := t.base()
	obj.kind = kind
	obj.id = d.nextID
	d.live[obj] = t
}

func (d *Device) release(t tracked) {
	obj := t.base()
	if _, ok := d.live[obj]; !ok {
		d.misuse("destroy of dead %s", obj)
		return
	}

	for _, cb := range d.pending {
		if cb.base() == obj {
			d.misuse("%s destroyed while pending", obj)
		}
		for _, ref := range cb.refs {
			if ref == obj {
				d.misuse("%s destroyed while %s is pending", obj, cb.base())
			}
		}
	}

	delete(d.live, obj)
}

func get[T tracked](d *Device, native any, kind string) (T, bool) {
	v, ok := native.(T)
	if !ok {
		d.misuse("expected a %s, got %T", kind, native)
		return v, false
	}
	if _, live := d.live[v.base()]; !live {
		d.misuse("use of destroyed %s", v.base())
		return v, false
	}
	return v, true
}

// Misuse lists the protocol violations seen so far.
func (d *Device) Misuse() []string {
	return d.misuses
}

// Live counts objects created on the device and not yet destroyed.
func (d *Device) Live() int {
	return len(d.live)
}

// LiveObjects names the live objects, sorted.
func (d *Device) LiveObjects() []string {
	names := make([]string, 0, len(d.live))
	for obj := range d.live {
		names = append(names, obj.String())
	}
	sort.Strings(names)
	return names
}

func (d *Device) Destroyed() bool {
	return d.destroyed
}

// ExtensionsEnabled is the extension list the device was created with.
func (d *Device) ExtensionsEnabled() []string {
	return d.info.Extensions
}

// QueueFamiliesRequested is the queue family list the device was created with.
func (d *Device) QueueFamiliesRequested() []int {
	return d.info.QueueFamilies
}

// QueueAcquireResults makes the next acquires return res in order instead of
// Success. Non-success results do not signal the semaphore.
func (d *Device) QueueAcquireResults(res ...gpu.Result) {
	d.acquireResults = append(d.acquireResults, res...)
}

// QueuePresentResults makes the next presents return res in order.
func (d *Device) QueuePresentResults(res ...gpu.Result) {
	d.presentResults = append(d.presentResults, res...)
}

// Pipelines returns the create info of every live graphics pipeline, oldest first.
func (d *Device) Pipelines() []gpu.GraphicsPipelineCreateInfo {
	var infos []gpu.GraphicsPipelineCreateInfo
	for _, p := range d.pipelines {
		if _, ok := d.live[p.base()]; ok {
			infos = append(infos, p.info)
		}
	}
	return infos
}

// PipelinesCreated counts every graphics pipeline ever created.
func (d *Device) PipelinesCreated() int {
	return len(d.pipelines)
}

// Swapchains returns the create info of the live swapchains.
func (d *Device) Swapchains() []gpu.SwapchainCreateInfo {
	var infos []gpu.SwapchainCreateInfo
	for _, t := range d.live {
		if sc, ok := t.(*swapchain); ok {
			infos = append(infos, sc.info)
		}
	}
	return infos
}

// RenderPasses returns the create info of the live render passes.
func (d *Device) RenderPasses() []gpu.RenderPassCreateInfo {
	var infos []gpu.RenderPassCreateInfo
	for _, t := range d.live {
		if rp, ok := t.(*renderPass); ok {
			infos = append(infos, rp.info)
		}
	}
	return infos
}

// FenceSignaled reports the signal state of a fence.
func (d *Device) FenceSignaled(f gpu.Fence) bool {
	fe, ok := get[*fence](d, f.Native, "fence")
	return ok && fe.signaled
}

func (d *Device) retire(cb *commandBuffer) {
	cb.pending = false
	if cb.fence != nil && cb.fence.pending {
		cb.fence.pending = false
		cb.fence.signaled = true
		d.event("signal %s", cb.fence.base())
	}
	cb.fence = nil
}

func (d *Device) retireAll() {
	for _, cb := range d.pending {
		d.retire(cb)
	}
	d.pending = nil
}

func (d *Device) retireFence(f *fence) {
	remaining := d.pending[:0]
	for _, cb := range d.pending {
		if cb.fence == f {
			d.retire(cb)
			continue
		}
		remaining = append(remaining, cb)
	}
	d.pending = remaining

	// a submit without command buffers still signals
	if f.pending {
		f.pending = false
		f.signaled = true
		d.event("signal %s", f.base())
	}
}

func (d *Device) Queue(queueFamily int) gpu.Queue {
	q, ok := d.queues[queueFamily]
	if !ok {
		q = gpu.Queue{Handle: gpu.Wrap(&queue{family: queueFamily})}
		d.queues[queueFamily] = q
	}
	return q
}

func (d *Device) WaitIdle() error {
	if d.Lost {
		return errors.New("device lost")
	}
	d.event("wait idle")
	d.retireAll()
	return nil
}

func (d *Device) Destroy() {
	if d.destroyed {
		d.misuse("device destroyed twice")
		return
	}
	if len(d.pending) > 0 {
		d.misuse("device destroyed with %d pending submissions", len(d.pending))
	}
	if len(d.live) > 0 {
		d.misuse("device destroyed with live objects %v", d.LiveObjects())
	}
	d.destroyed = true
}

func (d *Device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, error) {
	if err := d.instance.faults.check("CreateSwapchain"); err != nil {
		return gpu.Swapchain{}, err
	}

	caps := d.spec().Capabilities
	if info.Surface != d.instance.Surface() {
		d.misuse("swapchain for a foreign surface")
	}
	if info.Extent.Empty() {
		return gpu.Swapchain{}, errors.Newf("swapchain extent %s is empty", info.Extent)
	}
	if info.Extent.Width < caps.MinImageExtent.Width || info.Extent.Width > caps.MaxImageExtent.Width ||
		info.Extent.Height < caps.MinImageExtent.Height || info.Extent.Height > caps.MaxImageExtent.Height {
		d.misuse("swapchain extent %s outside [%s, %s]", info.Extent, caps.MinImageExtent, caps.MaxImageExtent)
	}
	if info.MinImageCount < caps.MinImageCount || (caps.MaxImageCount > 0 && info.MinImageCount > caps.MaxImageCount) {
		d.misuse("swapchain image count %d outside capabilities", info.MinImageCount)
	}

	sc := &swapchain{info: info}
	d.track(sc, "swapchain")
	for i := 0; i < info.MinImageCount; i++ {
		sc.images = append(sc.images, gpu.Image{Handle: gpu.Wrap(&object{kind: "image", id: i})})
	}
	d.event("create %s %s", sc.base(), info.Extent)
	return gpu.Swapchain{Handle: gpu.Wrap(sc)}, nil
}

func (d *Device) SwapchainImages(s gpu.Swapchain) ([]gpu.Image, error) {
	sc, ok := get[*swapchain](d, s.Native, "swapchain")
	if !ok {
		return nil, errors.New("invalid swapchain")
	}
	return append([]gpu.Image{}, sc.images...), nil
}

func (d *Device) DestroySwapchain(s gpu.Swapchain) {
	if sc, ok := get[*swapchain](d, s.Native, "swapchain"); ok {
		d.release(sc)
	}
}

func (d *Device) CreateImageView(image gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	if err := d.instance.faults.check("CreateImageView"); err != nil {
		return gpu.ImageView{}, err
	}
	if !image.Initialized() {
		return gpu.ImageView{}, errors.New("image view of a null image")
	}
	view := &object{}
	d.track(view, "imageView")
	return gpu.ImageView{Handle: gpu.Wrap(view)}, nil
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	if view, ok := get[*object](d, v.Native, "imageView"); ok {
		d.release(view)
	}
}

func (d *Device) CreateFramebuffer(rp gpu.RenderPass, attachments []gpu.ImageView, extent gpu.Extent2D) (gpu.Framebuffer, error) {
	if err := d.instance.faults.check("CreateFramebuffer"); err != nil {
		return gpu.Framebuffer{}, err
	}
	if _, ok := get[*renderPass](d, rp.Native, "renderPass"); !ok {
		return gpu.Framebuffer{}, errors.New("framebuffer with invalid render pass")
	}
	for _, view := range attachments {
		if _, ok := get[*object](d, view.Native, "imageView"); !ok {
			return gpu.Framebuffer{}, errors.New("framebuffer with invalid attachment")
		}
	}

	fb := &framebuffer{extent: extent}
	d.track(fb, "framebuffer")
	return gpu.Framebuffer{Handle: gpu.Wrap(fb)}, nil
}

func (d *Device) DestroyFramebuffer(f gpu.Framebuffer) {
	if fb, ok := get[*framebuffer](d, f.Native, "framebuffer"); ok {
		d.release(fb)
	}
}

func (d *Device) AcquireNextImage(s gpu.Swapchain, timeout time.Duration, sem gpu.Semaphore) (int, gpu.Result, error) {
	if d.Lost {
		return 0, gpu.DeviceLost, errors.New("device lost")
	}
	sc, ok := get[*swapchain](d, s.Native, "swapchain")
	if !ok {
		return 0, gpu.Failure, errors.New("invalid swapchain")
	}
	sema, ok := get[*semaphore](d, sem.Native, "semaphore")
	if !ok {
		return 0, gpu.Failure, errors.New("invalid semaphore")
	}
	if sema.signaled {
		d.misuse("acquire signals %s which is already signaled", sema.base())
	}

	res := gpu.Success
	if len(d.acquireResults) > 0 {
		res = d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
	}

	switch res {
	case gpu.Success, gpu.Suboptimal:
	case gpu.OutOfDate, gpu.Timeout, gpu.NotReady:
		d.event("acquire %s", res)
		return 0, res, nil
	default:
		d.event("acquire %s", res)
		return 0, res, errors.Newf("acquire: %s", res)
	}

	index := sc.next
	sc.next = (sc.next + 1) % len(sc.images)
	sema.signaled = true
	d.event("acquire %d", index)
	return index, res, nil
}

func (d *Device) QueuePresent(q gpu.Queue, info gpu.PresentInfo) (gpu.Result, error) {
	if d.Lost {
		return gpu.DeviceLost, errors.New("device lost")
	}
	sc, ok := get[*swapchain](d, info.Swapchain.Native, "swapchain")
	if !ok {
		return gpu.Failure, errors.New("invalid swapchain")
	}
	if info.ImageIndex < 0 || info.ImageIndex >= len(sc.images) {
		return gpu.Failure, errors.Newf("image index %d out of range", info.ImageIndex)
	}
	for _, sem := range info.WaitSemaphores {
		sema, ok := get[*semaphore](d, sem.Native, "semaphore")
		if !ok {
			continue
		}
		if !sema.signaled {
			d.misuse("present waits on unsignaled %s", sema.base())
		}
		sema.signaled = false
	}

	res := gpu.Success
	if len(d.presentResults) > 0 {
		res = d.presentResults[0]
		d.presentResults = d.presentResults[1:]
	}
	d.event("present %d %s", info.ImageIndex, res)

	switch res {
	case gpu.Success, gpu.Suboptimal, gpu.OutOfDate:
		return res, nil
	}
	return res, errors.Newf("present: %s", res)
}

func (d *Device) CreateRenderPass(info gpu.RenderPassCreateInfo) (gpu.RenderPass, error) {
	if err := d.instance.faults.check("CreateRenderPass"); err != nil {
		return gpu.RenderPass{}, err
	}
	rp := &renderPass{info: info}
	d.track(rp, "renderPass")
	return gpu.RenderPass{Handle: gpu.Wrap(rp)}, nil
}

func (d *Device) DestroyRenderPass(r gpu.RenderPass) {
	if rp, ok := get[*renderPass](d, r.Native, "renderPass"); ok {
		d.release(rp)
	}
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	if err := d.instance.faults.check("CreateShaderModule"); err != nil {
		return gpu.ShaderModule{}, err
	}
	if len(code) == 0 || code[0] != 0x07230203 {
		return gpu.ShaderModule{}, errors.New("invalid SPIR-V")
	}
	module := &object{}
	d.track(module, "shaderModule")
	return gpu.ShaderModule{Handle: gpu.Wrap(module)}, nil
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) {
	if module, ok := get[*object](d, m.Native, "shaderModule"); ok {
		d.release(module)
	}
}

func (d *Device) CreatePipelineLayout() (gpu.PipelineLayout, error) {
	if err := d.instance.faults.check("CreatePipelineLayout"); err != nil {
		return gpu.PipelineLayout{}, err
	}
	layout := &object{}
	d.track(layout, "pipelineLayout")
	return gpu.PipelineLayout{Handle: gpu.Wrap(layout)}, nil
}

func (d *Device) DestroyPipelineLayout(l gpu.PipelineLayout) {
	if layout, ok := get[*object](d, l.Native, "pipelineLayout"); ok {
		d.release(layout)
	}
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	if err := d.instance.faults.check("CreateGraphicsPipeline"); err != nil {
		return gpu.Pipeline{}, err
	}
	_, vertexOK := get[*object](d, info.VertexShader.Native, "shaderModule")
	_, fragmentOK := get[*object](d, info.FragmentShader.Native, "shaderModule")
	_, layoutOK := get[*object](d, info.Layout.Native, "pipelineLayout")
	_, renderPassOK := get[*renderPass](d, info.RenderPass.Native, "renderPass")
	if !vertexOK || !fragmentOK || !layoutOK || !renderPassOK {
		return gpu.Pipeline{}, errors.New("pipeline with invalid dependencies")
	}

	p := &pipeline{info: info}
	d.track(p, "pipeline")
	d.pipelines = append(d.pipelines, p)
	return gpu.Pipeline{Handle: gpu.Wrap(p)}, nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	if pl, ok := get[*pipeline](d, p.Native, "pipeline"); ok {
		d.release(pl)
	}
}

func (d *Device) CreateCommandPool(queueFamily int) (gpu.CommandPool, error) {
	if err := d.instance.faults.check("CreateCommandPool"); err != nil {
		return gpu.CommandPool{}, err
	}
	pool := &object{}
	d.track(pool, "commandPool")
	return gpu.CommandPool{Handle: gpu.Wrap(pool)}, nil
}

func (d *Device) DestroyCommandPool(p gpu.CommandPool) {
	pool, ok := get[*object](d, p.Native, "commandPool")
	if !ok {
		return
	}
	// buffers still allocated from the pool go with it
	for _, t := range d.live {
		if cb, isBuffer := t.(*commandBuffer); isBuffer && cb.pool == pool {
			d.release(cb)
		}
	}
	d.release(pool)
}

func (d *Device) AllocateCommandBuffers(p gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	if err := d.instance.faults.check("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	pool, ok := get[*object](d, p.Native, "commandPool")
	if !ok {
		return nil, errors.New("invalid command pool")
	}

	buffers := make([]gpu.CommandBuffer, count)
	for i := range buffers {
		cb := &commandBuffer{pool: pool}
		d.track(cb, "commandBuffer")
		buffers[i] = gpu.CommandBuffer{Handle: gpu.Wrap(cb)}
	}
	return buffers, nil
}

func (d *Device) FreeCommandBuffers(buffers ...gpu.CommandBuffer) {
	for _, b := range buffers {
		if cb, ok := get[*commandBuffer](d, b.Native, "commandBuffer"); ok {
			d.release(cb)
		}
	}
}

func (d *Device) recording(b gpu.CommandBuffer) (*commandBuffer, bool) {
	cb, ok := get[*commandBuffer](d, b.Native, "commandBuffer")
	if !ok {
		return nil, false
	}
	if !cb.recording {
		d.misuse("command recorded into %s outside begin/end", cb.base())
		return nil, false
	}
	return cb, true
}

func (d *Device) BeginCommandBuffer(b gpu.CommandBuffer, oneTimeSubmit bool) error {
	if err := d.instance.faults.check("BeginCommandBuffer"); err != nil {
		return err
	}
	cb, ok := get[*commandBuffer](d, b.Native, "commandBuffer")
	if !ok {
		return errors.New("invalid command buffer")
	}
	if cb.pending {
		d.misuse("%s re-recorded while its submission is pending", cb.base())
		return errors.Newf("%s is pending", cb.base())
	}
	if cb.recording {
		d.misuse("%s begun twice", cb.base())
	}

	cb.recording = true
	cb.executable = false
	cb.commands = nil
	cb.refs = nil
	cb.copies = nil
	d.event("begin %s", cb.base())
	return nil
}

func (d *Device) EndCommandBuffer(b gpu.CommandBuffer) error {
	cb, ok := d.recording(b)
	if !ok {
		return errors.New("end of a command buffer that is not recording")
	}
	if cb.inRenderPass {
		d.misuse("%s ended inside a render pass", cb.base())
	}
	cb.recording = false
	cb.executable = true
	return nil
}

func (d *Device) ResetCommandBuffer(b gpu.CommandBuffer) error {
	cb, ok := get[*commandBuffer](d, b.Native, "commandBuffer")
	if !ok {
		return errors.New("invalid command buffer")
	}
	if cb.pending {
		d.misuse("%s reset while its submission is pending", cb.base())
		return errors.Newf("%s is pending", cb.base())
	}

	cb.recording = false
	cb.inRenderPass = false
	cb.executable = false
	cb.commands = nil
	cb.refs = nil
	cb.copies = nil
	d.event("reset %s", cb.base())
	return nil
}

func (d *Device) CmdBeginRenderPass(b gpu.CommandBuffer, info gpu.RenderPassBeginInfo) error {
	cb, ok := d.recording(b)
	if !ok {
		return errors.New("command buffer is not recording")
	}
	rp, rpOK := get[*renderPass](d, info.RenderPass.Native, "renderPass")
	fb, fbOK := get[*framebuffer](d, info.Framebuffer.Native, "framebuffer")
	if !rpOK || !fbOK {
		return errors.New("render pass begin with invalid objects")
	}
	if fb.extent != info.Extent {
		d.misuse("render area %s does not match %s extent %s", info.Extent, fb.base(), fb.extent)
	}
	if cb.inRenderPass {
		d.misuse("nested render pass in %s", cb.base())
	}

	cb.inRenderPass = true
	cb.refs = append(cb.refs, rp.base(), fb.base())
	cb.commands = append(cb.commands, fmt.Sprintf("beginRenderPass %s clear=%v", fb.base(), info.ClearColor))
	return nil
}

func (d *Device) CmdBindPipeline(b gpu.CommandBuffer, p gpu.Pipeline) {
	cb, ok := d.recording(b)
	if !ok {
		return
	}
	pl, ok := get[*pipeline](d, p.Native, "pipeline")
	if !ok {
		return
	}
	cb.refs = append(cb.refs, pl.base())
	cb.commands = append(cb.commands, fmt.Sprintf("bindPipeline %s", pl.base()))
}

func (d *Device) CmdBindVertexBuffers(b gpu.CommandBuffer, buffers []gpu.Buffer, offsets []int) {
	cb, ok := d.recording(b)
	if !ok {
		return
	}
	if len(buffers) != len(offsets) {
		d.misuse("%d vertex buffers with %d offsets", len(buffers), len(offsets))
	}
	for _, vb := range buffers {
		buf, ok := get[*buffer](d, vb.Native, "buffer")
		if !ok {
			continue
		}
		if buf.usage&gpu.BufferUsageVertexBuffer == 0 {
			d.misuse("%s bound as vertex buffer without vertex usage", buf.base())
		}
		cb.refs = append(cb.refs, buf.base())
		cb.commands = append(cb.commands, fmt.Sprintf("bindVertexBuffers %s", buf.base()))
	}
}

func (d *Device) CmdBindIndexBuffer(b gpu.CommandBuffer, ib gpu.Buffer, offset int, indexType gpu.IndexType) {
	cb, ok := d.recording(b)
	if !ok {
		return
	}
	buf, ok := get[*buffer](d, ib.Native, "buffer")
	if !ok {
		return
	}
	if buf.usage&gpu.BufferUsageIndexBuffer == 0 {
		d.misuse("%s bound as index buffer without index usage", buf.base())
	}
	cb.refs = append(cb.refs, buf.base())
	cb.commands = append(cb.commands, fmt.Sprintf("bindIndexBuffer %s", buf.base()))
}

func (d *Device) CmdDraw(b gpu.CommandBuffer, vertexCount, instanceCount int) {
	if cb, ok := d.recording(b); ok {
		if !cb.inRenderPass {
			d.misuse("draw outside a render pass")
		}
		cb.commands = append(cb.commands, fmt.Sprintf("draw %d", vertexCount))
	}
}

func (d *Device) CmdDrawIndexed(b gpu.CommandBuffer, indexCount, instanceCount int) {
	if cb, ok := d.recording(b); ok {
		if !cb.inRenderPass {
			d.misuse("draw outside a render pass")
		}
		cb.commands = append(cb.commands, fmt.Sprintf("drawIndexed %d", indexCount))
	}
}

func (d *Device) CmdEndRenderPass(b gpu.CommandBuffer) {
	if cb, ok := d.recording(b); ok {
		if !cb.inRenderPass {
			d.misuse("end of a render pass that was not begun")
		}
		cb.inRenderPass = false
		cb.commands = append(cb.commands, "endRenderPass")
	}
}

func (d *Device) CmdCopyBuffer(b gpu.CommandBuffer, src, dst gpu.Buffer, regions ...gpu.BufferCopy) error {
	cb, ok := d.recording(b)
	if !ok {
		return errors.New("command buffer is not recording")
	}
	srcBuf, srcOK := get[*buffer](d, src.Native, "buffer")
	dstBuf, dstOK := get[*buffer](d, dst.Native, "buffer")
	if !srcOK || !dstOK {
		return errors.New("copy between invalid buffers")
	}
	if srcBuf.usage&gpu.BufferUsageTransferSrc == 0 {
		d.misuse("%s used as copy source without transfer-src usage", srcBuf.base())
	}
	if dstBuf.usage&gpu.BufferUsageTransferDst == 0 {
		d.misuse("%s used as copy destination without transfer-dst usage", dstBuf.base())
	}

	for _, region := range regions {
		if region.SrcOffset+region.Size > srcBuf.size || region.DstOffset+region.Size > dstBuf.size {
			return errors.Newf("copy region %+v out of bounds", region)
		}
		cb.copies = append(cb.copies, pendingCopy{src: srcBuf, dst: dstBuf, region: region})
		cb.commands = append(cb.commands, fmt.Sprintf("copyBuffer %d", region.Size))
	}
	cb.refs = append(cb.refs, srcBuf.base(), dstBuf.base())
	return nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	if err := d.instance.faults.check("CreateSemaphore"); err != nil {
		return gpu.Semaphore{}, err
	}
	sem := &semaphore{}
	d.track(sem, "semaphore")
	return gpu.Semaphore{Handle: gpu.Wrap(sem)}, nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	if sem, ok := get[*semaphore](d, s.Native, "semaphore"); ok {
		d.release(sem)
	}
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	if err := d.instance.faults.check("CreateFence"); err != nil {
		return gpu.Fence{}, err
	}
	f := &fence{signaled: signaled}
	d.track(f, "fence")
	return gpu.Fence{Handle: gpu.Wrap(f)}, nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	if fe, ok := get[*fence](d, f.Native, "fence"); ok {
		if fe.pending {
			d.misuse("%s destroyed while pending", fe.base())
		}
		d.release(fe)
	}
}

func (d *Device) WaitForFences(timeout time.Duration, fences ...gpu.Fence) (gpu.Result, error) {
	if d.Lost {
		return gpu.DeviceLost, errors.New("device lost")
	}

	for _, f := range fences {
		fe, ok := get[*fence](d, f.Native, "fence")
		if !ok {
			return gpu.Failure, errors.New("invalid fence")
		}
		d.event("wait %s", fe.base())

		if fe.signaled {
			continue
		}
		if !fe.pending {
			if timeout == gpu.NoTimeout {
				d.misuse("unbounded wait on %s which nothing will signal", fe.base())
			}
			return gpu.Timeout, nil
		}
		if d.HangFences {
			return gpu.Timeout, nil
		}
		d.retireFence(fe)
	}
	return gpu.Success, nil
}

func (d *Device) ResetFences(fences ...gpu.Fence) error {
	if err := d.instance.faults.check("ResetFences"); err != nil {
		return err
	}
	for _, f := range fences {
		fe, ok := get[*fence](d, f.Native, "fence")
		if !ok {
			return errors.New("invalid fence")
		}
		if fe.pending {
			d.misuse("%s reset while pending", fe.base())
			return errors.Newf("%s is pending", fe.base())
		}
		fe.signaled = false
		d.event("reset %s", fe.base())
	}
	return nil
}

func (d *Device) QueueSubmit(q gpu.Queue, f gpu.Fence, info gpu.SubmitInfo) (gpu.Result, error) {
	if d.Lost {
		return gpu.DeviceLost, errors.New("device lost")
	}
	if err := d.instance.faults.check("QueueSubmit"); err != nil {
		return gpu.Failure, err
	}

	var fe *fence
	if f.Initialized() {
		var ok bool
		fe, ok = get[*fence](d, f.Native, "fence")
		if !ok {
			return gpu.Failure, errors.New("invalid fence")
		}
		if fe.signaled || fe.pending {
			d.misuse("submit with %s that is not unsignaled", fe.base())
		}
	}

	if len(info.WaitSemaphores) != len(info.WaitStages) {
		d.misuse("%d wait semaphores with %d wait stages", len(info.WaitSemaphores), len(info.WaitStages))
	}
	for _, s := range info.WaitSemaphores {
		if sem, ok := get[*semaphore](d, s.Native, "semaphore"); ok {
			if !sem.signaled {
				d.misuse("submit waits on unsignaled %s", sem.base())
			}
			sem.signaled = false
		}
	}

	var cbs []*commandBuffer
	for _, b := range info.CommandBuffers {
		cb, ok := get[*commandBuffer](d, b.Native, "commandBuffer")
		if !ok {
			return gpu.Failure, errors.New("invalid command buffer")
		}
		if !cb.executable || cb.pending {
			d.misuse("submit of %s that is not executable", cb.base())
		}
		cbs = append(cbs, cb)
	}

	for _, s := range info.SignalSemaphores {
		if sem, ok := get[*semaphore](d, s.Native, "semaphore"); ok {
			if sem.signaled {
				d.misuse("submit signals %s which is already signaled", sem.base())
			}
			sem.signaled = true
		}
	}

	for _, cb := range cbs {
		for _, c := range cb.copies {
			if c.src.memory == nil || c.dst.memory == nil {
				d.misuse("copy between %s and %s without bound memory", c.src.base(), c.dst.base())
				continue
			}
			copy(c.dst.memory.data[c.region.DstOffset:c.region.DstOffset+c.region.Size],
				c.src.memory.data[c.region.SrcOffset:c.region.SrcOffset+c.region.Size])
		}

		cb.pending = true
		cb.fence = fe
		d.pending = append(d.pending, cb)
		d.Submitted = append(d.Submitted, Recording{
			CommandBuffer: cb.base().String(),
			Commands:      append([]string{}, cb.commands...),
		})
	}

	if fe != nil {
		fe.pending = true
		d.event("submit %d to %s", len(cbs), fe.base())
	} else {
		d.event("submit %d", len(cbs))
	}
	return gpu.Success, nil
}

func (d *Device) QueueWaitIdle(q gpu.Queue) error {
	if d.Lost {
		return errors.New("device lost")
	}
	d.event("queue wait idle")
	d.retireAll()
	return nil
}

func (d *Device) CreateBuffer(size int, usage gpu.BufferUsage) (gpu.Buffer, error) {
	if err := d.instance.faults.check("CreateBuffer"); err != nil {
		return gpu.Buffer{}, err
	}
	if size <= 0 {
		return gpu.Buffer{}, errors.Newf("buffer size %d", size)
	}
	buf := &buffer{size: size, usage: usage}
	d.track(buf, "buffer")
	return gpu.Buffer{Handle: gpu.Wrap(buf)}, nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	if buf, ok := get[*buffer](d, b.Native, "buffer"); ok {
		d.release(buf)
	}
}

func (d *Device) BufferMemoryRequirements(b gpu.Buffer) gpu.MemoryRequirements {
	buf, ok := get[*buffer](d, b.Native, "buffer")
	if !ok {
		return gpu.MemoryRequirements{}
	}
	return gpu.MemoryRequirements{
		Size:           (buf.size + 15) &^ 15,
		Alignment:      16,
		MemoryTypeBits: uint32(1)<<len(d.spec().MemoryTypes) - 1,
	}
}

func (d *Device) AllocateMemory(size int, memoryType int) (gpu.DeviceMemory, error) {
	if err := d.instance.faults.check("AllocateMemory"); err != nil {
		return gpu.DeviceMemory{}, err
	}
	if memoryType < 0 || memoryType >= len(d.spec().MemoryTypes) {
		return gpu.DeviceMemory{}, errors.Newf("memory type %d does not exist", memoryType)
	}
	mem := &memory{typeIndex: memoryType, data: make([]byte, size)}
	d.track(mem, "memory")
	return gpu.DeviceMemory{Handle: gpu.Wrap(mem)}, nil
}

func (d *Device) FreeMemory(m gpu.DeviceMemory) {
	if mem, ok := get[*memory](d, m.Native, "memory"); ok {
		if mem.mapped {
			d.misuse("%s freed while mapped", mem.base())
		}
		for _, t := range d.live {
			if buf, isBuffer := t.(*buffer); isBuffer && buf.memory == mem {
				d.misuse("%s freed while %s is still bound to it", mem.base(), buf.base())
			}
		}
		d.release(mem)
	}
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.DeviceMemory) error {
	if err := d.instance.faults.check("BindBufferMemory"); err != nil {
		return err
	}
	buf, bufOK := get[*buffer](d, b.Native, "buffer")
	mem, memOK := get[*memory](d, m.Native, "memory")
	if !bufOK || !memOK {
		return errors.New("bind of invalid objects")
	}
	if buf.memory != nil {
		d.misuse("%s bound twice", buf.base())
	}
	if len(mem.data) < buf.size {
		return errors.Newf("%s is smaller than %s", mem.base(), buf.base())
	}
	buf.memory = mem
	return nil
}

func (d *Device) MapMemory(m gpu.DeviceMemory, offset, size int) ([]byte, error) {
	if err := d.instance.faults.check("MapMemory"); err != nil {
		return nil, err
	}
	mem, ok := get[*memory](d, m.Native, "memory")
	if !ok {
		return nil, errors.New("invalid memory")
	}
	if d.spec().MemoryTypes[mem.typeIndex].Properties&gpu.MemoryPropertyHostVisible == 0 {
		return nil, errors.Newf("%s is not host visible", mem.base())
	}
	if mem.mapped {
		d.misuse("%s mapped twice", mem.base())
	}
	if offset < 0 || offset+size > len(mem.data) {
		return nil, errors.Newf("map range %d+%d out of bounds", offset, size)
	}
	mem.mapped = true
	return mem.data[offset : offset+size : offset+size], nil
}

func (d *Device) UnmapMemory(m gpu.DeviceMemory) {
	if mem, ok := get[*memory](d, m.Native, "memory"); ok {
		if !mem.mapped {
			d.misuse("%s unmapped without being mapped", mem.base())
		}
		mem.mapped = false
	}
}

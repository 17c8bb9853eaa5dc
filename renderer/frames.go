package renderer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/frameloop/gpu"
)

// SlotState tracks where a frame slot is in its Idle -> Recording ->
// Submitted -> Idle cycle.
type SlotState int

const (
	SlotIdle SlotState = iota
	SlotRecording
	SlotSubmitted
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "Idle"
	case SlotRecording:
		return "Recording"
	case SlotSubmitted:
		return "Submitted"
	}
	return fmt.Sprintf("SlotState(%d)", int(s))
}

// FrameSlot is the per-frame set of objects. The in-flight fence gates reuse
// of the command buffer.
type FrameSlot struct {
	CommandBuffer  gpu.CommandBuffer
	ImageAvailable gpu.Semaphore
	RenderFinished gpu.Semaphore
	InFlight       gpu.Fence
	State          SlotState
}

type Stats struct {
	FramesPresented   uint64
	FramesSkipped     uint64
	SwapchainRebuilds uint64
	PipelineRebuilds  uint64
	// LastFrameTime is the CPU time of the last DrawFrame that submitted work.
	LastFrameTime time.Duration
}

func (r *Renderer) createFrameSlots() error {
	device := r.device.Device

	commandBuffers, err := device.AllocateCommandBuffers(r.commandPool, r.config.FramesInFlight)
	if err != nil {
		return errors.Wrap(err, "allocate command buffers")
	}

	for _, commandBuffer := range commandBuffers {
		slot := &FrameSlot{CommandBuffer: commandBuffer}
		r.frames = append(r.frames, slot)

		slot.ImageAvailable, err = device.CreateSemaphore()
		if err != nil {
			return errors.Wrap(err, "create image available semaphore")
		}

		slot.RenderFinished, err = device.CreateSemaphore()
		if err != nil {
			return errors.Wrap(err, "create render finished semaphore")
		}

		// Signaled so the first wait on every slot returns immediately
		slot.InFlight, err = device.CreateFence(true)
		if err != nil {
			return errors.Wrap(err, "create in-flight fence")
		}
	}

	return nil
}

func (r *Renderer) destroyFrameSlots() {
	device := r.device.Device

	var commandBuffers []gpu.CommandBuffer
	for _, slot := range r.frames {
		if slot.InFlight.Initialized() {
			device.DestroyFence(slot.InFlight)
		}
		if slot.RenderFinished.Initialized() {
			device.DestroySemaphore(slot.RenderFinished)
		}
		if slot.ImageAvailable.Initialized() {
			device.DestroySemaphore(slot.ImageAvailable)
		}
		commandBuffers = append(commandBuffers, slot.CommandBuffer)
	}

	if len(commandBuffers) > 0 {
		device.FreeCommandBuffers(commandBuffers...)
	}
	r.frames = nil
}

func (r *Renderer) recordCommandBuffer(slot *FrameSlot, imageIndex int, vertexBuffer, indexBuffer *GpuBuffer, count int) error {
	device := r.device.Device
	commandBuffer := slot.CommandBuffer

	err := device.ResetCommandBuffer(commandBuffer)
	if err != nil {
		return errors.Wrap(err, "reset command buffer")
	}

	err = device.BeginCommandBuffer(commandBuffer, true)
	if err != nil {
		return errors.Wrap(err, "begin command buffer")
	}

	err = device.CmdBeginRenderPass(commandBuffer, gpu.RenderPassBeginInfo{
		RenderPass:  r.pipeline.RenderPass,
		Framebuffer: r.swapchain.Framebuffers[imageIndex],
		Extent:      r.swapchain.Extent,
		ClearColor:  r.config.ClearColor,
	})
	if err != nil {
		return errors.Wrap(err, "begin render pass")
	}

	// Without geometry the pass only clears
	if vertexBuffer != nil && count > 0 {
		device.CmdBindPipeline(commandBuffer, r.pipeline.Pipeline)
		device.CmdBindVertexBuffers(commandBuffer, []gpu.Buffer{vertexBuffer.Buffer}, []int{0})

		if indexBuffer != nil {
			device.CmdBindIndexBuffer(commandBuffer, indexBuffer.Buffer, 0, gpu.IndexTypeUInt32)
			device.CmdDrawIndexed(commandBuffer, count, 1)
		} else {
			device.CmdDraw(commandBuffer, count, 1)
		}
	}

	device.CmdEndRenderPass(commandBuffer)

	err = device.EndCommandBuffer(commandBuffer)
	if err != nil {
		return errors.Wrap(err, "end command buffer")
	}

	return nil
}

// checkDrawCount rejects counts that would read past the bound buffers.
func checkDrawCount(vertexBuffer, indexBuffer *GpuBuffer, count int) error {
	if count < 0 {
		return errors.Newf("negative draw count %d", count)
	}
	if vertexBuffer == nil || count == 0 {
		return nil
	}
	if !vertexBuffer.Buffer.Initialized() {
		return errors.New("draw from a destroyed vertex buffer")
	}
	if indexBuffer != nil {
		if !indexBuffer.Buffer.Initialized() {
			return errors.New("draw from a destroyed index buffer")
		}
		if count > indexBuffer.ElementCount {
			return errors.Newf("draw of %d indices, index buffer holds %d", count, indexBuffer.ElementCount)
		}
		return nil
	}
	if count > vertexBuffer.ElementCount {
		return errors.Newf("draw of %d vertices, vertex buffer holds %d", count, vertexBuffer.ElementCount)
	}
	return nil
}

// DrawFrame renders and presents one frame on the current slot. count is the
// number of indices to draw, or the number of vertices when indexBuffer is
// nil. A nil vertexBuffer or a zero count records a clear-only pass. A count
// larger than the bound buffer holds is rejected before any GPU work.
//
// An out-of-date swapchain is rebuilt and the frame is skipped; the call still
// succeeds. Errors after the in-flight fence has been reset leave the
// renderer failed.
func (r *Renderer) DrawFrame(vertexBuffer, indexBuffer *GpuBuffer, count int) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if r.failed != nil {
		return r.failedError()
	}
	err := checkDrawCount(vertexBuffer, indexBuffer, count)
	if err != nil {
		return err
	}

	start := hrtime.Now()
	device := r.device.Device
	slot := r.frames[r.currentFrame]

	res, err := device.WaitForFences(r.config.waitTimeout(), slot.InFlight)
	err = resultError(res, err, "wait for in-flight fence")
	if err != nil {
		return err
	}
	slot.State = SlotIdle

	if r.window.Resized() {
		r.stale = true
	}
	if r.stale {
		r.stats.FramesSkipped++
		return r.rebuildSwapchain()
	}

	if vertexBuffer != nil && vertexBuffer.Layout != nil && !vertexBuffer.Layout.Equal(r.pipeline.VertexLayout) {
		r.vertexLayout = *vertexBuffer.Layout
		err = r.rebuildPipeline()
		if err != nil {
			return err
		}
	}

	imageIndex, res, err := device.AcquireNextImage(r.swapchain.Swapchain, r.config.waitTimeout(), slot.ImageAvailable)
	if res == gpu.OutOfDate {
		r.stats.FramesSkipped++
		Logger().Debug("swapchain out of date on acquire")
		return r.rebuildSwapchain()
	}
	err = resultError(res, err, "acquire next image")
	if err != nil {
		return err
	}

	// The fence is reset only once work is certain to be submitted on it
	err = device.ResetFences(slot.InFlight)
	if err != nil {
		return r.fail(errors.Wrap(err, "reset in-flight fence"))
	}

	slot.State = SlotRecording
	err = r.recordCommandBuffer(slot, imageIndex, vertexBuffer, indexBuffer, count)
	if err != nil {
		return r.fail(err)
	}

	res, err = device.QueueSubmit(r.device.GraphicsQueue, slot.InFlight, gpu.SubmitInfo{
		WaitSemaphores:   []gpu.Semaphore{slot.ImageAvailable},
		WaitStages:       []gpu.PipelineStage{gpu.PipelineStageColorAttachmentOutput},
		CommandBuffers:   []gpu.CommandBuffer{slot.CommandBuffer},
		SignalSemaphores: []gpu.Semaphore{slot.RenderFinished},
	})
	err = resultError(res, err, "submit draw command buffer")
	if err != nil {
		return r.fail(err)
	}
	slot.State = SlotSubmitted

	res, err = device.QueuePresent(r.device.PresentQueue, gpu.PresentInfo{
		WaitSemaphores: []gpu.Semaphore{slot.RenderFinished},
		Swapchain:      r.swapchain.Swapchain,
		ImageIndex:     imageIndex,
	})

	r.currentFrame = (r.currentFrame + 1) % len(r.frames)
	r.stats.LastFrameTime = hrtime.Since(start)

	switch res {
	case gpu.OutOfDate:
		r.stale = true
		Logger().Debug("swapchain out of date on present")
		return nil
	case gpu.Suboptimal:
		Logger().Warn("suboptimal present", slog.String("extent", r.swapchain.Extent.String()))
	}

	err = resultError(res, err, "present")
	if err != nil {
		return err
	}

	r.stats.FramesPresented++
	return nil
}

// SlotStates reports the state of every frame slot in slot order.
func (r *Renderer) SlotStates() []SlotState {
	states := make([]SlotState, len(r.frames))
	for i, slot := range r.frames {
		states[i] = slot.State
	}
	return states
}

// CurrentFrame is the index of the slot the next DrawFrame uses.
func (r *Renderer) CurrentFrame() int {
	return r.currentFrame
}

func (r *Renderer) Stats() Stats {
	return r.stats
}

package vkng

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/frameloop/gpu"
)

// native unwraps a handle created by this package. A zero handle yields the
// zero vkngwrapper handle.
func native[T any](h gpu.Handle) T {
	v, _ := h.Native.(T)
	return v
}

func physicalDevice(device gpu.PhysicalDevice) core1_0.PhysicalDevice {
	return native[core1_0.PhysicalDevice](device.Handle)
}

// extent converts a driver extent. The 0xFFFFFFFF width a surface reports
// when the swapchain picks its own size becomes gpu.UndefinedExtent.
func extent(e core1_0.Extent2D) gpu.Extent2D {
	if uint32(e.Width) == math.MaxUint32 {
		return gpu.UndefinedExtent
	}
	return gpu.Extent2D{Width: e.Width, Height: e.Height}
}

func vkExtent(e gpu.Extent2D) core1_0.Extent2D {
	return core1_0.Extent2D{Width: e.Width, Height: e.Height}
}

func timeout(d time.Duration) time.Duration {
	if d == gpu.NoTimeout {
		return common.NoTimeout
	}
	return d
}

// result sorts a VkResult into the classes the renderer tells apart. Success
// codes other than the ones listed count as Success.
func result(res common.VkResult, err error) (gpu.Result, error) {
	switch res {
	case core1_0.VKSuccess:
		return gpu.Success, nil
	case khr_swapchain.VKSuboptimal:
		return gpu.Suboptimal, nil
	case core1_0.VKNotReady:
		return gpu.NotReady, nil
	case core1_0.VKTimeout:
		return gpu.Timeout, nil
	case khr_swapchain.VKErrorOutOfDate:
		return gpu.OutOfDate, err
	case khr_surface.VKErrorSurfaceLost:
		return gpu.SurfaceLost, err
	case core1_0.VKErrorDeviceLost:
		return gpu.DeviceLost, err
	}

	if err != nil {
		return gpu.Failure, err
	}
	if res < 0 {
		return gpu.Failure, errors.Newf("vulkan error %s", res)
	}
	return gpu.Success, nil
}

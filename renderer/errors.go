package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/frameloop/gpu"
)

var (
	// ErrNoCapableDevice means no physical device offers graphics, present,
	// the swapchain extension, a surface format and a present mode.
	ErrNoCapableDevice = errors.New("no capable GPU")
	// ErrNoMemoryType means no memory type satisfies a buffer's requirements.
	ErrNoMemoryType = errors.New("no suitable memory type")
	// ErrShaderLoad covers missing or malformed shader bytecode and module
	// creation failures.
	ErrShaderLoad = errors.New("shader load failed")
	// ErrDeviceLost means the device stopped answering; nothing created from
	// it can be used again.
	ErrDeviceLost = errors.New("device lost")
	// ErrSurfaceLost means the window surface went away.
	ErrSurfaceLost = errors.New("surface lost")
	// ErrTimeout means a bounded GPU wait expired.
	ErrTimeout = errors.New("gpu wait timed out")
	// ErrRendererFailed is returned by every call after a rebuild failed.
	ErrRendererFailed = errors.New("renderer is in a failed state")
	// ErrRendererClosed is returned by every call after Shutdown.
	ErrRendererClosed = errors.New("renderer is shut down")
)

// resultError maps a failed result onto the error class the caller has to
// handle. Success, Suboptimal and OutOfDate are not errors here.
func resultError(res gpu.Result, err error, step string) error {
	switch res {
	case gpu.OutOfDate:
		return nil
	case gpu.Success, gpu.Suboptimal:
		if err == nil {
			return nil
		}
	case gpu.Timeout:
		return errors.Wrap(ErrTimeout, step)
	case gpu.DeviceLost:
		return errors.Wrap(ErrDeviceLost, step)
	case gpu.SurfaceLost:
		return errors.Wrap(ErrSurfaceLost, step)
	}

	if err == nil {
		return errors.Newf("%s: %s", step, res)
	}
	return errors.Wrap(err, step)
}

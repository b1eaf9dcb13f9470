package pipeline

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Target identifies the render target an artifact is built for. The
// shader text itself is format-independent, but the pipeline objects a
// caller derives from an artifact are not, so the target takes part in
// the cache key.
type Target struct {
	// Format is the color attachment pixel format.
	Format gputypes.TextureFormat

	// Samples is the per-pixel sample count. Zero means 1 (no MSAA).
	Samples uint32
}

// DefaultTarget derives a target from the provider's surface format,
// with no multisampling. A nil provider yields an undefined format,
// which still keys consistently for emit-only use.
func DefaultTarget(provider gpucontext.DeviceProvider) Target {
	if provider == nil {
		return Target{Format: gputypes.TextureFormatUndefined, Samples: 1}
	}
	return Target{Format: provider.SurfaceFormat(), Samples: 1}
}

// normalized applies defaults so equivalent targets share a cache key.
func (t Target) normalized() Target {
	if t.Samples == 0 {
		t.Samples = 1
	}
	return t
}

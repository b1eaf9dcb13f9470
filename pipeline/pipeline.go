// Package pipeline turns compiled shader modules into device-ready
// artifacts and caches them by structural fingerprint.
//
// A cache miss runs the full path: emit WGSL, compile it to SPIR-V
// with naga, and create the hal.ShaderModule on the cache's device.
// The artifact is memoized for the life of the process, keyed by the
// module fingerprint plus the render-target parameters, so equivalent
// shaders compile exactly once and a hit never touches the emitter.
package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/naga"
	"github.com/gogpu/shade"
	"github.com/gogpu/shade/cache"
	"github.com/gogpu/wgpu/hal"
)

var (
	// ErrNilModule is returned when GetOrCreate is passed a nil module.
	ErrNilModule = errors.New("pipeline: nil shader module")

	// ErrNilProvider is returned when NewFromProvider is passed nil.
	ErrNilProvider = errors.New("pipeline: nil DeviceProvider")

	// ErrNoHALDevice is returned when a provider exposes no hal.Device.
	ErrNoHALDevice = errors.New("pipeline: provider does not expose a hal.Device")
)

// Artifact is one fully compiled shader: the emitted WGSL, its SPIR-V
// translation as little-endian words, and the device shader module
// when the cache owns a device.
type Artifact struct {
	// Label is the debug label of the source module.
	Label string

	// WGSL is the emitted shader source.
	WGSL string

	// SPIRV is the compiled bytecode, one word per 4 source bytes.
	SPIRV []uint32

	// Module is the device shader module. Nil when the cache was
	// created without a device.
	Module hal.ShaderModule
}

// Cache maps shader fingerprints to compiled artifacts.
//
// Entries are never evicted: the population is bounded by the number
// of distinct (shader, target) pairs the application defines, not by
// traffic. A miss runs the compile path with the shard lock held, so
// concurrent requests for one fingerprint compile exactly once and
// share the artifact. First use of a shader is therefore synchronous
// and potentially slow; every later use is a map lookup.
type Cache struct {
	device hal.Device
	memo   *cache.Memo[uint64, *Artifact]

	// emits counts emitter invocations. Only misses drive it, which
	// is what makes the at-most-one-compile property observable.
	emits atomic.Uint64
}

// New creates a cache that compiles on the given device. A nil device
// is allowed: artifacts then stop at SPIR-V and carry no device
// module, which suits shader tooling and tests.
func New(device hal.Device) *Cache {
	return &Cache{
		device: device,
		memo:   cache.NewMemo[uint64, *Artifact](cache.Uint64Hasher),
	}
}

// NewFromProvider creates a cache on the device shared by a gpucontext
// provider. The provider must expose the underlying device through a
// HalDevice() any method, the way gogpu application contexts do.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Cache, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	type halProvider interface {
		HalDevice() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALDevice
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, ErrNoHALDevice
	}
	return New(device), nil
}

// GetOrCreate returns the artifact for module compiled against target,
// building it on first use. The key combines the module fingerprint
// with the target parameters, so relabeled but structurally identical
// modules share one artifact while a format or sample-count change
// gets its own. A failed compile stores nothing and may be retried.
func (c *Cache) GetOrCreate(module *shade.ShaderModule, target Target) (*Artifact, error) {
	if module == nil {
		return nil, ErrNilModule
	}
	target = target.normalized()
	key := artifactKey(module.Fingerprint(), target)
	return c.memo.GetOrCreate(key, func() (*Artifact, error) {
		return c.build(module, target)
	})
}

// build runs the emit, SPIR-V and device steps for one cache miss.
func (c *Cache) build(module *shade.ShaderModule, target Target) (*Artifact, error) {
	c.emits.Add(1)
	text := module.Emit()

	spirv, err := naga.Compile(text)
	if err != nil {
		return nil, fmt.Errorf("pipeline: compile %q: %w", module.Label(), err)
	}
	words := packWords(spirv)

	artifact := &Artifact{
		Label: module.Label(),
		WGSL:  text,
		SPIRV: words,
	}
	if c.device != nil {
		halModule, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  module.Label(),
			Source: hal.ShaderSource{SPIRV: words},
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: create shader module %q: %w", module.Label(), err)
		}
		artifact.Module = halModule
	}

	shade.Logger().Debug("compiled pipeline artifact",
		"label", module.Label(),
		"fingerprint", module.Fingerprint(),
		"format", target.Format,
		"samples", target.Samples,
		"spirvWords", len(words),
	)
	return artifact, nil
}

// Stats describes cache usage. Emits counts actual emitter runs, so a
// caller can verify that concurrent requests for one shader compiled
// it exactly once.
type Stats struct {
	Artifacts int
	Emits     uint64
	Hits      uint64
	Misses    uint64
	HitRate   float64
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	ms := c.memo.Stats()
	return Stats{
		Artifacts: ms.Len,
		Emits:     c.emits.Load(),
		Hits:      ms.Hits,
		Misses:    ms.Misses,
		HitRate:   ms.HitRate,
	}
}

// Destroy releases the device shader modules held by the cache. Meant
// for shutdown: it does not synchronize with concurrent GetOrCreate
// calls, and the cache must not be used afterwards.
func (c *Cache) Destroy() {
	if c.device == nil {
		return
	}
	c.memo.Range(func(_ uint64, a *Artifact) bool {
		if a.Module != nil {
			c.device.DestroyShaderModule(a.Module)
			a.Module = nil
		}
		return true
	})
}

// artifactKey combines the module fingerprint with the target
// parameters. FNV-1a over little-endian bytes, matching how the
// fingerprint itself is computed.
func artifactKey(fingerprint uint64, target Target) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], fingerprint)
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint32(buf[:4], uint32(target.Format))
	_, _ = h.Write(buf[:4])
	binary.LittleEndian.PutUint32(buf[:4], target.Samples)
	_, _ = h.Write(buf[:4])
	return h.Sum64()
}

// packWords converts SPIR-V bytes to little-endian 32-bit words.
func packWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}

//go:build !nogpu

// Package gpu implements the GPU compute tier over the wgpu HAL.
// Operations run as WGSL compute shaders compiled through naga;
// compiled pipelines are cached per operation kind with time-based
// eviction. Device acquisition is probed once at Init; failure
// permanently disables the tier for the process.
package gpu

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/genoscope/seqcompute/backend"
	"github.com/genoscope/seqcompute/internal/cache"
	"github.com/genoscope/seqcompute/seq"
)

//go:embed shaders/kmer_count.wgsl
var kmerCountWGSL string

//go:embed shaders/gc_skew.wgsl
var gcSkewWGSL string

//go:embed shaders/dot_plot.wgsl
var dotPlotWGSL string

//go:embed shaders/sim_step.wgsl
var simStepWGSL string

// Tier capability limits. Inputs beyond these fall through to the
// next tier rather than erroring.
const (
	// maxKmerK keeps the histogram buffer at 4^8 u32 = 256 KiB.
	maxKmerK = 8
	// maxSeqBytes bounds a single packed sequence upload.
	maxSeqBytes = 256 << 20
	// maxDotPlotPairs bounds the brute-force pair grid (and keeps
	// the raster bin arithmetic within u32).
	maxDotPlotPairs = 1 << 26

	pipelineTTL  = 2 * time.Minute
	fenceTimeout = 5 * time.Second
)

// init registers the GPU tier on package import.
func init() {
	backend.Register(backend.TierGPU, func() backend.Tier {
		return &Tier{}
	})
}

// Tier runs operations as compute shaders on a wgpu device. Dispatch
// is serialized on one mutex: the tier owns a single queue, and the
// pipeline cache may destroy evicted pipelines between dispatches.
type Tier struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	pipelines *cache.TTLCache[backend.Kind, *pipelineState]

	externalDevice bool
	initialized    bool
}

// NewTier creates a GPU tier. Most callers go through the registry.
func NewTier() *Tier { return &Tier{} }

// Name returns TierGPU.
func (t *Tier) Name() string { return backend.TierGPU }

// Supports reports the kinds with a compute-shader implementation.
// Sequence diff and Hilbert rasterization stay on the CPU tiers.
func (t *Tier) Supports(k backend.Kind) bool {
	switch k {
	case backend.KindKmerCount, backend.KindGCSkew, backend.KindDotPlot, backend.KindSimStep:
		return true
	default:
		return false
	}
}

// Init probes for a GPU device: Vulkan backend, adapter enumeration
// preferring discrete then integrated GPUs, device open. An error
// here permanently disables the tier (the dispatcher never retries).
func (t *Tier) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialized {
		return nil
	}

	hb, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("gpu: vulkan backend not available")
	}
	instance, err := hb.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("gpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return fmt.Errorf("gpu: no adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("gpu: open device: %w", err)
	}

	t.instance = instance
	t.device = openDev.Device
	t.queue = openDev.Queue
	t.externalDevice = false
	t.initPipelineCacheLocked()
	t.initialized = true

	slogger().Info("gpu: device initialized", "adapter", selected.Info.Name)
	return nil
}

// SetDeviceProvider switches the tier to a shared device from an
// external provider exposing HalDevice() any and HalQueue() any.
// Replaces any standalone device the tier opened itself.
func (t *Tier) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.releaseLocked()

	t.device = device
	t.queue = queue
	t.externalDevice = true
	t.initPipelineCacheLocked()
	t.initialized = true

	slogger().Debug("gpu: switched to shared device")
	return nil
}

func (t *Tier) initPipelineCacheLocked() {
	t.pipelines = cache.New[backend.Kind, *pipelineState](pipelineTTL, func(p *pipelineState) {
		p.destroy()
	})
}

// releaseLocked destroys the pipeline cache and any owned device.
func (t *Tier) releaseLocked() {
	if t.pipelines != nil {
		t.pipelines.Clear()
		t.pipelines = nil
	}
	if !t.externalDevice {
		if t.device != nil {
			t.device.Destroy()
		}
		if t.instance != nil {
			t.instance.Destroy()
		}
	}
	t.device = nil
	t.queue = nil
	t.instance = nil
	t.externalDevice = false
	t.initialized = false
}

// Close releases every GPU resource the tier owns. Shared devices
// from SetDeviceProvider are not destroyed.
func (t *Tier) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked()
}

// Run executes the request on the device. Inputs outside the tier's
// capability (raw-encoded sequences, oversized grids, k beyond the
// histogram cap) return ErrTierUnavailable so the dispatcher falls
// through silently.
func (t *Tier) Run(ctx context.Context, req *backend.Request) (*backend.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return nil, backend.ErrNotInitialized
	}
	if !t.Supports(req.Kind) {
		return nil, backend.ErrUnsupportedKind
	}
	// Compute shaders read 2-bit codes; sequences with ambiguity
	// codes stay raw-encoded and run on the CPU tiers.
	if req.Buf.Encoding() != seq.EncodingPacked || req.Buf.ByteLen() > maxSeqBytes {
		return nil, backend.ErrTierUnavailable
	}

	var (
		res *backend.Result
		err error
	)
	switch req.Kind {
	case backend.KindKmerCount:
		res, err = t.runKmerCount(req)
	case backend.KindGCSkew:
		res, err = t.runGCSkew(req)
	case backend.KindDotPlot:
		res, err = t.runDotPlot(req)
	case backend.KindSimStep:
		res, err = t.runSimStep(req)
	}
	if err != nil {
		return nil, err
	}
	res.Kind = req.Kind
	res.Tier = backend.TierGPU
	return res, nil
}

//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/genoscope/seqcompute/analysis"
	"github.com/genoscope/seqcompute/backend"
)

const workgroupSize = 256

// pipelineState holds a compiled compute pipeline and its layouts.
// Cached per operation kind; destroyed on cache eviction.
type pipelineState struct {
	device   hal.Device
	module   hal.ShaderModule
	bgLayout hal.BindGroupLayout
	layout   hal.PipelineLayout
	pipeline hal.ComputePipeline
}

func (p *pipelineState) destroy() {
	if p.pipeline != nil {
		p.device.DestroyComputePipeline(p.pipeline)
	}
	if p.layout != nil {
		p.device.DestroyPipelineLayout(p.layout)
	}
	if p.bgLayout != nil {
		p.device.DestroyBindGroupLayout(p.bgLayout)
	}
	if p.module != nil {
		p.device.DestroyShaderModule(p.module)
	}
}

// bindingKind describes one shader binding slot for layout creation.
type bindingKind int

const (
	bindUniform bindingKind = iota
	bindStorageRO
	bindStorageRW
)

func layoutEntries(kinds []bindingKind) []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, len(kinds))
	for i, k := range kinds {
		var bt gputypes.BufferBindingType
		switch k {
		case bindUniform:
			bt = gputypes.BufferBindingTypeUniform
		case bindStorageRO:
			bt = gputypes.BufferBindingTypeReadOnlyStorage
		case bindStorageRW:
			bt = gputypes.BufferBindingTypeStorage
		}
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: bt},
		}
	}
	return entries
}

// shaderSpec pairs a kind's WGSL source with its binding layout.
var shaderSpecs = map[backend.Kind]struct {
	label    string
	source   string
	bindings []bindingKind
}{
	backend.KindKmerCount: {"kmer-count", kmerCountWGSL, []bindingKind{bindUniform, bindStorageRO, bindStorageRW}},
	backend.KindGCSkew:    {"gc-skew", gcSkewWGSL, []bindingKind{bindUniform, bindStorageRO, bindStorageRW}},
	backend.KindDotPlot:   {"dot-plot", dotPlotWGSL, []bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRW}},
	backend.KindSimStep:   {"sim-step", simStepWGSL, []bindingKind{bindUniform, bindStorageRO, bindStorageRW, bindStorageRW}},
}

// pipelineFor returns the cached pipeline for kind, compiling it on
// first use. Compilation goes WGSL -> SPIR-V via naga, then through
// the HAL pipeline chain.
func (t *Tier) pipelineFor(kind backend.Kind) (*pipelineState, error) {
	return t.pipelines.GetOrCreate(kind, func() (*pipelineState, error) {
		return t.buildPipeline(kind)
	})
}

func (t *Tier) buildPipeline(kind backend.Kind) (*pipelineState, error) {
	spec, ok := shaderSpecs[kind]
	if !ok {
		return nil, backend.ErrUnsupportedKind
	}

	start := time.Now()
	spirv, err := naga.Compile(spec.source)
	if err != nil {
		return nil, fmt.Errorf("gpu: compile %s shader: %w", spec.label, err)
	}
	code := make([]uint32, len(spirv)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}

	ps := &pipelineState{device: t.device}
	destroyPartial := func() { ps.destroy() }

	ps.module, err = t.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  spec.label,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s module: %w", spec.label, err)
	}

	ps.bgLayout, err = t.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   spec.label + "-bgl",
		Entries: layoutEntries(spec.bindings),
	})
	if err != nil {
		destroyPartial()
		return nil, fmt.Errorf("gpu: create %s bind group layout: %w", spec.label, err)
	}

	ps.layout, err = t.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            spec.label + "-layout",
		BindGroupLayouts: []hal.BindGroupLayout{ps.bgLayout},
	})
	if err != nil {
		destroyPartial()
		return nil, fmt.Errorf("gpu: create %s pipeline layout: %w", spec.label, err)
	}

	ps.pipeline, err = t.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  spec.label,
		Layout: ps.layout,
		Compute: hal.ComputeState{
			Module:     ps.module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		destroyPartial()
		return nil, fmt.Errorf("gpu: create %s pipeline: %w", spec.label, err)
	}

	slogger().Debug("gpu: pipeline compiled", "kind", spec.label, "elapsed", time.Since(start))
	return ps, nil
}

// dispatchResources tracks per-dispatch HAL objects for cleanup.
type dispatchResources struct {
	device  hal.Device
	buffers []hal.Buffer
	bg      hal.BindGroup
	cmdBuf  hal.CommandBuffer
	fence   hal.Fence
}

func (r *dispatchResources) cleanup() {
	if r.fence != nil {
		r.device.DestroyFence(r.fence)
	}
	if r.cmdBuf != nil {
		r.device.FreeCommandBuffer(r.cmdBuf)
	}
	if r.bg != nil {
		r.device.DestroyBindGroup(r.bg)
	}
	for _, b := range r.buffers {
		r.device.DestroyBuffer(b)
	}
}

func (t *Tier) createBuffer(r *dispatchResources, label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := t.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s buffer: %w", label, err)
	}
	r.buffers = append(r.buffers, buf)
	return buf, nil
}

// zeroFill writes zeros into the first size bytes of an output
// buffer so atomics start from a known state.
func (t *Tier) zeroFill(buf hal.Buffer, size uint64) {
	zeros := make([]byte, size)
	t.queue.WriteBuffer(buf, 0, zeros)
}

func putU32(dst []byte, vals ...uint32) {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(dst[i*4:], v)
	}
}

// execute encodes one compute pass over the bind group, submits it,
// waits on a fence and reads size bytes back from staging.
func (t *Tier) execute(ps *pipelineState, r *dispatchResources, label string, groupsX, groupsY uint32, storage, staging hal.Buffer, readSize uint64) ([]byte, error) {
	entries := make([]gputypes.BindGroupEntry, len(r.buffers))
	bindable := 0
	for _, b := range r.buffers {
		if b == staging {
			continue
		}
		entries[bindable] = gputypes.BindGroupEntry{
			Binding: uint32(bindable),
			Resource: gputypes.BufferBinding{
				Buffer: b.NativeHandle(),
				Offset: 0,
				Size:   0, // 0 = entire buffer
			},
		}
		bindable++
	}
	entries = entries[:bindable]

	bg, err := t.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label + "-bg",
		Layout:  ps.bgLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s bind group: %w", label, err)
	}
	r.bg = bg

	encoder, err := t.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s encoder: %w", label, err)
	}
	encoder.BeginEncoding(label)

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label})
	pass.SetPipeline(ps.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(groupsX, groupsY, 1)
	pass.End()

	encoder.CopyBufferToBuffer(storage, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: readSize},
	})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("gpu: encode %s: %w", label, err)
	}
	r.cmdBuf = cmdBuf

	fence, err := t.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s fence: %w", label, err)
	}
	r.fence = fence

	if err := t.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("gpu: submit %s: %w", label, err)
	}
	if _, err := t.device.Wait(fence, 1, fenceTimeout); err != nil {
		return nil, fmt.Errorf("gpu: wait %s: %w", label, err)
	}

	readback := make([]byte, readSize)
	if err := t.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("gpu: read %s results: %w", label, err)
	}
	return readback, nil
}

// uploadPacked copies a packed sequence into a read-only storage
// buffer, padded to a 4-byte boundary.
func (t *Tier) uploadPacked(r *dispatchResources, label string, data []byte) (hal.Buffer, error) {
	size := (uint64(len(data)) + 3) &^ 3
	if size == 0 {
		size = 4
	}
	buf, err := t.createBuffer(r, label, size, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		padded := make([]byte, size)
		copy(padded, data)
		data = padded
	}
	t.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

func (t *Tier) runKmerCount(req *backend.Request) (*backend.Result, error) {
	k := req.Opts.K
	n := req.Buf.Len()
	if k <= 0 || k > maxKmerK || n < k {
		return nil, backend.ErrTierUnavailable
	}
	numKmers := uint64(1) << (2 * uint(k))
	outSize := numKmers * 4

	res := &dispatchResources{device: t.device}
	defer res.cleanup()

	cfg, err := t.createBuffer(res, "kmer-config", 16, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	cfgData := make([]byte, 16)
	putU32(cfgData, uint32(n), uint32(k), uint32(numKmers-1), 0)
	t.queue.WriteBuffer(cfg, 0, cfgData)

	if _, err := t.uploadPacked(res, "kmer-seq", req.Buf.Bytes()); err != nil {
		return nil, err
	}

	counts, err := t.createBuffer(res, "kmer-counts", outSize,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc)
	if err != nil {
		return nil, err
	}
	t.zeroFill(counts, outSize)

	staging, err := t.createBuffer(res, "kmer-staging", outSize,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}

	ps, err := t.pipelineFor(backend.KindKmerCount)
	if err != nil {
		return nil, err
	}

	groups := (uint32(n) + workgroupSize - 1) / workgroupSize
	raw, err := t.execute(ps, res, "kmer-count", groups, 1, counts, staging, outSize)
	if err != nil {
		return nil, err
	}

	out := make([]uint32, numKmers)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return &backend.Result{Counts: out}, nil
}

func (t *Tier) runGCSkew(req *backend.Request) (*backend.Result, error) {
	n := req.Buf.Len()
	window, step := req.Opts.Window, req.Opts.Step
	if window <= 0 || step <= 0 || n < window {
		return nil, backend.ErrTierUnavailable
	}
	numWindows := (n-window)/step + 1
	outSize := uint64(numWindows) * 2 * 4

	res := &dispatchResources{device: t.device}
	defer res.cleanup()

	cfg, err := t.createBuffer(res, "skew-config", 16, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	cfgData := make([]byte, 16)
	putU32(cfgData, uint32(n), uint32(window), uint32(step), uint32(numWindows))
	t.queue.WriteBuffer(cfg, 0, cfgData)

	if _, err := t.uploadPacked(res, "skew-seq", req.Buf.Bytes()); err != nil {
		return nil, err
	}

	gcCounts, err := t.createBuffer(res, "skew-counts", outSize,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc)
	if err != nil {
		return nil, err
	}
	t.zeroFill(gcCounts, outSize)

	staging, err := t.createBuffer(res, "skew-staging", outSize,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}

	ps, err := t.pipelineFor(backend.KindGCSkew)
	if err != nil {
		return nil, err
	}

	groups := (uint32(numWindows) + workgroupSize - 1) / workgroupSize
	raw, err := t.execute(ps, res, "gc-skew", groups, 1, gcCounts, staging, outSize)
	if err != nil {
		return nil, err
	}

	// The shader returns per-window G and C counts; the float math
	// happens here in float64 so results match the CPU tiers bit
	// for bit.
	skew := make([]float64, numWindows)
	cumulative := make([]float64, numWindows)
	var running float64
	minIdx, maxIdx := 0, 0
	for w := 0; w < numWindows; w++ {
		g := binary.LittleEndian.Uint32(raw[w*8:])
		c := binary.LittleEndian.Uint32(raw[w*8+4:])
		var s float64
		if g+c > 0 {
			s = (float64(g) - float64(c)) / (float64(g) + float64(c))
		}
		skew[w] = s
		running += s
		cumulative[w] = running
		if running < cumulative[minIdx] {
			minIdx = w
		}
		if running > cumulative[maxIdx] {
			maxIdx = w
		}
	}
	return &backend.Result{
		Skew:       skew,
		Cumulative: cumulative,
		Origin:     minIdx * step,
		Terminus:   maxIdx * step,
	}, nil
}

// dotPlotConfig builds the shader uniform. The first two words are
// the k-word counts (len - k + 1), which bound the thread grid and
// serve as the bin denominators so GPU cells match the CPU tiers
// exactly.
func dotPlotConfig(na, nb, k, width, height int) []byte {
	cfg := make([]byte, 32)
	putU32(cfg, uint32(na-k+1), uint32(nb-k+1), uint32(k), uint32(width), uint32(height), 0, 0, 0)
	return cfg
}

func (t *Tier) runDotPlot(req *backend.Request) (*backend.Result, error) {
	if req.Buf2 == nil {
		return nil, backend.ErrInvalidRequest
	}
	if req.Buf2.Encoding() != req.Buf.Encoding() {
		return nil, backend.ErrTierUnavailable
	}
	na, nb := req.Buf.Len(), req.Buf2.Len()
	k, width, height := req.Opts.K, req.Opts.Width, req.Opts.Height
	if k <= 0 || k > maxKmerK || width <= 0 || height <= 0 || na < k || nb < k {
		return nil, backend.ErrTierUnavailable
	}
	if uint64(na)*uint64(nb) > maxDotPlotPairs {
		return nil, backend.ErrTierUnavailable
	}
	outSize := uint64(width) * uint64(height) * 4

	res := &dispatchResources{device: t.device}
	defer res.cleanup()

	cfg, err := t.createBuffer(res, "dotplot-config", 32, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	t.queue.WriteBuffer(cfg, 0, dotPlotConfig(na, nb, k, width, height))

	if _, err := t.uploadPacked(res, "dotplot-seq-a", req.Buf.Bytes()); err != nil {
		return nil, err
	}
	if _, err := t.uploadPacked(res, "dotplot-seq-b", req.Buf2.Bytes()); err != nil {
		return nil, err
	}

	counts, err := t.createBuffer(res, "dotplot-counts", outSize,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc)
	if err != nil {
		return nil, err
	}
	t.zeroFill(counts, outSize)

	staging, err := t.createBuffer(res, "dotplot-staging", outSize,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}

	ps, err := t.pipelineFor(backend.KindDotPlot)
	if err != nil {
		return nil, err
	}

	// 16x16 workgroups over the (posA, posB) pair grid.
	groupsX := (uint32(na-k+1) + 15) / 16
	groupsY := (uint32(nb-k+1) + 15) / 16
	raw, err := t.execute(ps, res, "dot-plot", groupsX, groupsY, counts, staging, outSize)
	if err != nil {
		return nil, err
	}

	out := make([]uint32, width*height)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return &backend.Result{Counts: out, Width: width, Height: height}, nil
}

func (t *Tier) runSimStep(req *backend.Request) (*backend.Result, error) {
	n := req.Buf.Len()
	if n == 0 {
		return nil, backend.ErrTierUnavailable
	}
	if req.Opts.MutationRate < 0 || req.Opts.MutationRate > 1 || math.IsNaN(req.Opts.MutationRate) {
		return nil, backend.ErrInvalidRequest
	}
	threshold := analysis.MutationThreshold(req.Opts.MutationRate)

	// One output u32 per 4 bases of ASCII, plus a trailing word for
	// the mutation counter in a separate binding.
	outWords := uint64((n + 3) / 4)
	outSize := outWords * 4

	res := &dispatchResources{device: t.device}
	defer res.cleanup()

	cfg, err := t.createBuffer(res, "sim-config", 16, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	cfgData := make([]byte, 16)
	putU32(cfgData, uint32(n), uint32(req.Opts.Seed), uint32(req.Opts.Generation), threshold)
	t.queue.WriteBuffer(cfg, 0, cfgData)

	if _, err := t.uploadPacked(res, "sim-seq", req.Buf.Bytes()); err != nil {
		return nil, err
	}

	outBuf, err := t.createBuffer(res, "sim-out", outSize,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc)
	if err != nil {
		return nil, err
	}
	t.zeroFill(outBuf, outSize)

	mutBuf, err := t.createBuffer(res, "sim-mutations", 4,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc)
	if err != nil {
		return nil, err
	}
	t.zeroFill(mutBuf, 4)

	staging, err := t.createBuffer(res, "sim-staging", outSize,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	mutStaging, err := t.createBuffer(res, "sim-mut-staging", 4,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}

	ps, err := t.pipelineFor(backend.KindSimStep)
	if err != nil {
		return nil, err
	}

	groups := (uint32(outWords) + workgroupSize - 1) / workgroupSize
	raw, err := t.executeSim(ps, res, groups, outBuf, mutBuf, staging, mutStaging, outSize)
	if err != nil {
		return nil, err
	}

	mutRaw := make([]byte, 4)
	if err := t.queue.ReadBuffer(mutStaging, 0, mutRaw); err != nil {
		return nil, fmt.Errorf("gpu: read mutation count: %w", err)
	}

	return &backend.Result{
		Sequence:  raw[:n],
		Mutations: binary.LittleEndian.Uint32(mutRaw),
	}, nil
}

// executeSim is execute plus a second staging copy for the mutation
// counter. The staging buffers are excluded from the bind group.
func (t *Tier) executeSim(ps *pipelineState, r *dispatchResources, groups uint32, outBuf, mutBuf, staging, mutStaging hal.Buffer, outSize uint64) ([]byte, error) {
	entries := make([]gputypes.BindGroupEntry, 0, len(r.buffers))
	for _, b := range r.buffers {
		if b == staging || b == mutStaging {
			continue
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding: uint32(len(entries)),
			Resource: gputypes.BufferBinding{
				Buffer: b.NativeHandle(),
				Offset: 0,
				Size:   0, // 0 = entire buffer
			},
		})
	}

	bg, err := t.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "sim-step-bg",
		Layout:  ps.bgLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create sim-step bind group: %w", err)
	}
	r.bg = bg

	encoder, err := t.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "sim-step"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create sim-step encoder: %w", err)
	}
	encoder.BeginEncoding("sim-step")

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "sim-step"})
	pass.SetPipeline(ps.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(groups, 1, 1)
	pass.End()

	encoder.CopyBufferToBuffer(outBuf, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: outSize},
	})
	encoder.CopyBufferToBuffer(mutBuf, mutStaging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: 4},
	})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("gpu: encode sim-step: %w", err)
	}
	r.cmdBuf = cmdBuf

	fence, err := t.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpu: create sim-step fence: %w", err)
	}
	r.fence = fence

	if err := t.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("gpu: submit sim-step: %w", err)
	}
	if _, err := t.device.Wait(fence, 1, fenceTimeout); err != nil {
		return nil, fmt.Errorf("gpu: wait sim-step: %w", err)
	}

	readback := make([]byte, outSize)
	if err := t.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("gpu: read sim-step results: %w", err)
	}
	return readback, nil
}

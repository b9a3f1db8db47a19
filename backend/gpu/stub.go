//go:build nogpu

// Package gpu is stubbed out under the nogpu build tag. The tier name
// stays registered so diagnostics can show it as unavailable.
package gpu

import "github.com/genoscope/seqcompute/backend"

func init() {
	backend.Register(backend.TierGPU, nil)
}

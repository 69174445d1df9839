// Package plan computes how an oversized audio file is split into
// time-bounded chunks that fit under an upstream API size limit.
package plan

import "math"

// Default planning parameters.
const (
	// DefaultSizeCeilingMB is the upstream API's per-file size limit.
	DefaultSizeCeilingMB = 25.0

	// DefaultSafetyFactor shrinks the computed chunk duration by 10%:
	// duration and size do not scale perfectly linearly across formats
	// and bitrates, so chunks aimed exactly at the ceiling can overshoot.
	DefaultSafetyFactor = 0.9

	// DefaultMinChunkSeconds is the floor on chunk duration.
	DefaultMinChunkSeconds = 60.0
)

// Params holds the chunk planning knobs. The ceiling, safety factor and
// floor track a specific upstream API's current limits and are configuration,
// not constants.
type Params struct {
	SizeCeilingMB   float64
	SafetyFactor    float64
	MinChunkSeconds float64
}

// Default returns Params tuned for the current upstream limits.
func Default() Params {
	return Params{
		SizeCeilingMB:   DefaultSizeCeilingMB,
		SafetyFactor:    DefaultSafetyFactor,
		MinChunkSeconds: DefaultMinChunkSeconds,
	}
}

// Plan is the result of Calculate: how many chunks to extract and how long
// each one runs. The last chunk may be shorter than ChunkSeconds.
type Plan struct {
	NumChunks    int
	ChunkSeconds float64
}

// Calculate returns the chunk plan for a file of the given size and duration.
//
// Files at or under the ceiling need no chunking: the branch is taken only
// for strictly greater sizes, so a file exactly at the limit is sent whole.
// The raw chunk duration is rounded down to a whole minute (with a one-minute
// floor) so chunk boundaries stay predictable and the chunk count is not
// sensitive to sub-second jitter in duration probing.
//
// Pure function: same inputs always produce the same plan.
func (p Params) Calculate(fileSizeMB, durationSeconds float64) Plan {
	if fileSizeMB <= p.SizeCeilingMB {
		return Plan{NumChunks: 1, ChunkSeconds: durationSeconds}
	}

	raw := (p.SizeCeilingMB / fileSizeMB) * durationSeconds * p.SafetyFactor
	chunk := math.Max(p.MinChunkSeconds, math.Floor(raw/60)*60)

	num := int(math.Ceil(durationSeconds / chunk))
	if num < 1 {
		num = 1
	}

	return Plan{NumChunks: num, ChunkSeconds: chunk}
}

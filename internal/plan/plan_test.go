package plan_test

import (
	"testing"

	"github.com/alnah/go-scribe/internal/plan"
)

// ---------------------------------------------------------------------------
// TestCalculate - Chunk plan math
// ---------------------------------------------------------------------------

func TestCalculate(t *testing.T) {
	t.Parallel()

	params := plan.Default()

	tests := []struct {
		name             string
		fileSizeMB       float64
		durationSeconds  float64
		wantNumChunks    int
		wantChunkSeconds float64
	}{
		{
			name:             "small file needs no chunking",
			fileSizeMB:       10,
			durationSeconds:  300,
			wantNumChunks:    1,
			wantChunkSeconds: 300,
		},
		{
			name:             "file exactly at ceiling is sent whole",
			fileSizeMB:       25,
			durationSeconds:  1200,
			wantNumChunks:    1,
			wantChunkSeconds: 1200,
		},
		{
			name:            "30MB over 10 minutes splits in two",
			fileSizeMB:      30,
			durationSeconds: 600,
			// raw = (25/30)*600*0.9 = 450s, floored to 420s -> 2 chunks.
			wantNumChunks:    2,
			wantChunkSeconds: 420,
		},
		{
			name:            "huge file hits the one-minute floor",
			fileSizeMB:      2500,
			durationSeconds: 600,
			// raw = (25/2500)*600*0.9 = 5.4s, clamped up to 60s.
			wantNumChunks:    10,
			wantChunkSeconds: 60,
		},
		{
			name:            "slightly over ceiling still chunks",
			fileSizeMB:      25.5,
			durationSeconds: 1200,
			// raw = (25/25.5)*1200*0.9 ~ 1058.8s, floored to 1020s.
			wantNumChunks:    2,
			wantChunkSeconds: 1020,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := params.Calculate(tt.fileSizeMB, tt.durationSeconds)
			if got.NumChunks != tt.wantNumChunks {
				t.Errorf("NumChunks = %d, want %d", got.NumChunks, tt.wantNumChunks)
			}
			if got.ChunkSeconds != tt.wantChunkSeconds {
				t.Errorf("ChunkSeconds = %g, want %g", got.ChunkSeconds, tt.wantChunkSeconds)
			}
		})
	}
}

func TestCalculate_IsPure(t *testing.T) {
	t.Parallel()

	params := plan.Default()
	first := params.Calculate(30, 600)
	second := params.Calculate(30, 600)
	if first != second {
		t.Errorf("Calculate not deterministic: %+v vs %+v", first, second)
	}
}

func TestCalculate_ChunksCoverDuration(t *testing.T) {
	t.Parallel()

	params := plan.Default()
	inputs := []struct{ size, duration float64 }{
		{26, 60}, {30, 600}, {100, 3600}, {25.01, 7200}, {500, 90},
	}
	for _, in := range inputs {
		p := params.Calculate(in.size, in.duration)
		if float64(p.NumChunks)*p.ChunkSeconds < in.duration {
			t.Errorf("Calculate(%g, %g) = %+v does not cover the duration",
				in.size, in.duration, p)
		}
	}
}

package scoring

import (
	"math"
	"testing"

	"github.com/pagepulse/pagepulse/internal/model"
)

func TestTimeScore_Ramp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seconds int
		want    float64
	}{
		{0, 0},
		{15, 12.5},
		{30, 25},
		{45, 32.5},
		{60, 40},
		{90, 50},
		{120, 60},
		{210, 70},
		{300, 80},
		{450, 90},
		{600, 100},
		{3600, 100},
		{-5, 0},
	}

	for _, tt := range tests {
		if got := TimeScore(tt.seconds); got != tt.want {
			t.Errorf("TimeScore(%d) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestTimeScore_Monotonic(t *testing.T) {
	t.Parallel()

	prev := -1.0
	for s := 0; s <= 700; s++ {
		got := TimeScore(s)
		if got < prev {
			t.Fatalf("TimeScore(%d) = %v decreased from %v", s, got, prev)
		}
		prev = got
	}
}

func TestFileSession_AllZero(t *testing.T) {
	t.Parallel()

	rec := &model.AccessLog{}
	if got := FileSession(rec, nil); got != 0 {
		t.Errorf("FileSession(zero record) = %d, want 0", got)
	}
}

func TestFileSession_MaxedOut(t *testing.T) {
	t.Parallel()

	rec := &model.AccessLog{
		TotalDurationSeconds: 600,
		CompletionPercentage: 100,
		Downloaded:           true,
		ReturnVisitCount:     2,
		TotalPages:           10,
		MaxPageReached:       10,
	}

	got := FileSession(rec, nil)
	if got != 100 {
		t.Fatalf("FileSession = %d, want 100", got)
	}
	if IntentSignal(got) != IntentHot {
		t.Errorf("IntentSignal(%d) = %s, want hot", got, IntentSignal(got))
	}
	if !IsHotLead(got, rec.HasDownload(), rec.ReturnVisitCount) {
		t.Error("IsHotLead should be true for a maxed-out session")
	}
}

func TestFileSession_Deterministic(t *testing.T) {
	t.Parallel()

	rec := &model.AccessLog{
		TotalDurationSeconds: 145,
		CompletionPercentage: 62,
		DownloadCount:        1,
		ReturnVisitCount:     1,
		TotalPages:           8,
		MaxPageReached:       5,
	}

	first := FileSession(rec, nil)
	for i := 0; i < 50; i++ {
		if got := FileSession(rec, nil); got != first {
			t.Fatalf("FileSession varied between calls: %d vs %d", got, first)
		}
	}
}

func TestFileSession_DurationMonotonic(t *testing.T) {
	t.Parallel()

	base := model.AccessLog{
		CompletionPercentage: 40,
		TotalPages:           5,
		MaxPageReached:       2,
	}

	prev := -1
	for secs := 0; secs <= 650; secs += 10 {
		rec := base
		rec.TotalDurationSeconds = secs
		got := FileSession(&rec, nil)
		if got < prev {
			t.Fatalf("score decreased at %ds: %d < %d", secs, got, prev)
		}
		prev = got
	}
}

func TestFileSession_RangeUnderAdversarialInputs(t *testing.T) {
	t.Parallel()

	records := []*model.AccessLog{
		{TotalDurationSeconds: -100, CompletionPercentage: -50, ReturnVisitCount: -3},
		{TotalDurationSeconds: math.MaxInt32, CompletionPercentage: 100000, ReturnVisitCount: math.MaxInt32, DownloadCount: math.MaxInt32},
		{CompletionPercentage: math.NaN()},
		{VideoCompletionPercent: math.Inf(1)},
		{TotalPages: 1000000, MaxPageReached: math.MaxInt32},
		{PagesTime: map[int]float64{1: math.NaN(), 2: math.Inf(1), 3: -50}},
		{SegmentsTime: map[int]float64{-1: 100, 99: 100, 0: 5}},
		nil,
	}

	for i, rec := range records {
		got := FileSession(rec, nil)
		if got < 0 || got > 100 {
			t.Errorf("record %d: score %d out of [0,100]", i, got)
		}
	}
}

func TestCompletionScore_VideoOverride(t *testing.T) {
	t.Parallel()

	rec := &model.AccessLog{CompletionPercentage: 30, VideoCompletionPercent: 80}
	if got := CompletionScore(rec); got != 80 {
		t.Errorf("CompletionScore = %v, want video override 80", got)
	}

	rec = &model.AccessLog{CompletionPercentage: 30, VideoCompletionPercent: 0}
	if got := CompletionScore(rec); got != 30 {
		t.Errorf("CompletionScore = %v, want 30 when video completion absent", got)
	}
}

func TestDepthScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		rec        model.AccessLog
		totalPages int
		want       float64
	}{
		{
			name:       "paginated document uses page ratio",
			rec:        model.AccessLog{MaxPageReached: 5, CompletionPercentage: 10},
			totalPages: 10,
			want:       50,
		},
		{
			name:       "single page falls back to completion",
			rec:        model.AccessLog{MaxPageReached: 1, CompletionPercentage: 75},
			totalPages: 1,
			want:       75,
		},
		{
			name:       "zero pages falls back to completion",
			rec:        model.AccessLog{CompletionPercentage: 42},
			totalPages: 0,
			want:       42,
		},
		{
			name: "segments count dwell coverage",
			rec: model.AccessLog{
				SegmentsTime: map[int]float64{0: 10, 1: 5, 2: 0.5, 3: 2},
			},
			totalPages: 0,
			want:       30, // 3 of 10 segments with >=1s
		},
		{
			name:       "page ratio clamped at 100",
			rec:        model.AccessLog{MaxPageReached: 20},
			totalPages: 10,
			want:       100,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := DepthScore(&tt.rec, tt.totalPages); got != tt.want {
				t.Errorf("DepthScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDepthScore_PagesFromMetadata(t *testing.T) {
	t.Parallel()

	rec := &model.AccessLog{MaxPageReached: 4}
	meta := &model.File{TotalPages: 8}

	// FileSession should pick up totalPages from metadata when the record
	// carries none.
	withMeta := FileSession(rec, meta)
	without := FileSession(rec, nil)
	if withMeta == without {
		t.Errorf("metadata totalPages should change the depth sub-score: %d vs %d", withMeta, without)
	}
}

func TestReturnScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		count int
		want  float64
	}{
		{0, 0},
		{1, 50},
		{2, 100},
		{5, 100},
		{-1, 0},
	}

	for _, tt := range tests {
		if got := ReturnScore(tt.count); got != tt.want {
			t.Errorf("ReturnScore(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestFileSessionBinaryReturn(t *testing.T) {
	t.Parallel()

	// Same record, conventions diverge: one prior visit scores 50 under
	// the canonical convention but 100 under the legacy binary one.
	rec := &model.AccessLog{
		IsReturnVisit:    true,
		ReturnVisitCount: 1,
	}

	canonical := FileSession(rec, nil)
	legacy := FileSessionBinaryReturn(rec, nil)
	if legacy <= canonical {
		t.Errorf("binary convention should score higher here: legacy=%d canonical=%d", legacy, canonical)
	}
}

func TestResolveDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  model.AccessLog
		want int
	}{
		{"explicit duration wins", model.AccessLog{TotalDurationSeconds: 90, PagesTime: map[int]float64{1: 500}}, 90},
		{"pages map fallback", model.AccessLog{PagesTime: map[int]float64{1: 10.4, 2: 20.4}}, 31},
		{"segments map fallback", model.AccessLog{SegmentsTime: map[int]float64{0: 12, 1: 8}}, 20},
		{"empty record", model.AccessLog{}, 0},
		{"negative duration ignored", model.AccessLog{TotalDurationSeconds: -10}, 0},
		{"malformed map entries skipped", model.AccessLog{PagesTime: map[int]float64{1: math.NaN(), 2: -5, 3: 7}}, 7},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ResolveDuration(&tt.rec); got != tt.want {
				t.Errorf("ResolveDuration = %d, want %d", got, tt.want)
			}
		})
	}
}

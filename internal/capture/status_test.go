package capture

import (
	"testing"

	"github.com/synssins/homebox-companion/internal/models"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name          string
		stats         models.SessionStats
		pushAttempted bool
		pushing       bool
		abandoned     bool
		want          models.SessionStatus
	}{
		{
			name:  "no images",
			stats: models.SessionStats{},
			want:  models.SessionCreated,
		},
		{
			name:  "only pending images",
			stats: models.SessionStats{Pending: 3},
			want:  models.SessionCreated,
		},
		{
			name:  "any processing wins",
			stats: models.SessionStats{Pending: 1, Processing: 1, Completed: 2},
			want:  models.SessionProcessing,
		},
		{
			name:  "all completed",
			stats: models.SessionStats{Completed: 4},
			want:  models.SessionReady,
		},
		{
			name:  "completed and failed",
			stats: models.SessionStats{Completed: 2, Failed: 1},
			want:  models.SessionMixed,
		},
		{
			name:  "all failed",
			stats: models.SessionStats{Failed: 3},
			want:  models.SessionMixed,
		},
		{
			name:  "all pushed",
			stats: models.SessionStats{Pushed: 3},
			want:  models.SessionPushed,
		},
		{
			name:          "push left failures behind",
			stats:         models.SessionStats{Pushed: 2, Failed: 1},
			pushAttempted: true,
			want:          models.SessionPartial,
		},
		{
			name:          "push left completed-unpushed behind",
			stats:         models.SessionStats{Pushed: 1, Completed: 2},
			pushAttempted: true,
			want:          models.SessionPartial,
		},
		{
			name:    "pushing flag overrides image statuses",
			stats:   models.SessionStats{Completed: 3},
			pushing: true,
			want:    models.SessionPushing,
		},
		{
			name:      "abandoned overrides everything",
			stats:     models.SessionStats{Processing: 1, Completed: 2},
			pushing:   true,
			abandoned: true,
			want:      models.SessionAbandoned,
		},
		{
			name:  "pending alongside completed",
			stats: models.SessionStats{Pending: 1, Completed: 1},
			want:  models.SessionCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.stats, tt.pushAttempted, tt.pushing, tt.abandoned)
			if got != tt.want {
				t.Errorf("DeriveStatus(%+v, pushAttempted=%v, pushing=%v, abandoned=%v) = %q, want %q",
					tt.stats, tt.pushAttempted, tt.pushing, tt.abandoned, got, tt.want)
			}
		})
	}
}

// DeriveStatus must be a pure function of its inputs: the same multiset
// of image statuses always yields the same session status, and every
// multiset yields some status.
func TestDeriveStatusTotalAndDeterministic(t *testing.T) {
	counts := []int{0, 1, 2}
	for _, pending := range counts {
		for _, processing := range counts {
			for _, completed := range counts {
				for _, failed := range counts {
					for _, pushed := range counts {
						stats := models.SessionStats{
							Pending:    pending,
							Processing: processing,
							Completed:  completed,
							Failed:     failed,
							Pushed:     pushed,
						}
						for _, pushAttempted := range []bool{false, true} {
							first := DeriveStatus(stats, pushAttempted, false, false)
							if first == "" {
								t.Fatalf("DeriveStatus(%+v, %v) returned empty status", stats, pushAttempted)
							}
							second := DeriveStatus(stats, pushAttempted, false, false)
							if first != second {
								t.Fatalf("DeriveStatus(%+v, %v) not deterministic: %q then %q", stats, pushAttempted, first, second)
							}
						}
					}
				}
			}
		}
	}
}

func TestComputeStats(t *testing.T) {
	records := []*models.ImageRecord{
		{Status: models.ImagePending},
		{Status: models.ImageProcessing},
		{Status: models.ImageCompleted},
		{Status: models.ImageCompleted},
		{Status: models.ImageFailed},
		{Status: models.ImagePushed},
	}

	stats := ComputeStats(records)
	want := models.SessionStats{Pending: 1, Processing: 1, Completed: 2, Failed: 1, Pushed: 1}
	if stats != want {
		t.Errorf("ComputeStats() = %+v, want %+v", stats, want)
	}
	if stats.Total() != len(records) {
		t.Errorf("Total() = %d, want %d", stats.Total(), len(records))
	}
}

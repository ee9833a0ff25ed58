package capture

import "github.com/synssins/homebox-companion/internal/models"

// DeriveStatus computes a session's aggregate status from its image
// stats plus the out-of-band flags. It is a pure function so the same
// multiset of image statuses always yields the same session status.
//
// Precedence, highest first: abandoned, pushing, then the image-derived
// statuses.
func DeriveStatus(stats models.SessionStats, pushAttempted, pushing, abandoned bool) models.SessionStatus {
	if abandoned {
		return models.SessionAbandoned
	}
	if pushing {
		return models.SessionPushing
	}

	total := stats.Total()
	if total == 0 {
		return models.SessionCreated
	}
	if stats.Processing > 0 {
		return models.SessionProcessing
	}
	if stats.Pushed == total {
		return models.SessionPushed
	}
	if pushAttempted && stats.Pushed > 0 {
		// A push ran but left failed or completed-unpushed images behind.
		return models.SessionPartial
	}
	if stats.Completed > 0 && stats.Failed > 0 {
		return models.SessionMixed
	}
	if stats.Completed == total {
		return models.SessionReady
	}
	if stats.Failed == total {
		// Every image failed; surfaced as mixed so the user can retry
		// individual images or abandon.
		return models.SessionMixed
	}
	// Images still pending, nothing in flight yet.
	return models.SessionCreated
}

// ComputeStats tallies image statuses into session stats.
func ComputeStats(records []*models.ImageRecord) models.SessionStats {
	var stats models.SessionStats
	for _, rec := range records {
		switch rec.Status {
		case models.ImagePending:
			stats.Pending++
		case models.ImageProcessing:
			stats.Processing++
		case models.ImageCompleted:
			stats.Completed++
		case models.ImageFailed:
			stats.Failed++
		case models.ImagePushed:
			stats.Pushed++
		}
	}
	return stats
}

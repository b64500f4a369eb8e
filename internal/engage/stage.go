package engage

import "promobot/internal/storage"

// nextStage returns the stage an event moves the user to.
//
// This is deliberately a last-write-wins overwrite, not a lifecycle: an
// engaged user who later sends free text becomes active, and a greeting from
// a known user moves them back to returning. Broadcast eligibility and
// reporting read whichever stage was set last.
func nextStage(kind EventKind, current storage.Stage) storage.Stage {
	switch kind {
	case EventGreeting:
		return storage.StageReturning
	case EventButton:
		return storage.StageEngaged
	case EventFreeText:
		return storage.StageActive
	default:
		// Promo requests (and anything unclassified) leave the stage alone.
		return current
	}
}

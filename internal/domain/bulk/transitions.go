package bulk

import "github.com/target/redis-bulk-actions/internal/domain/model"

// allowedTransitions lists every status a bulk action may move to from its current status.
// Terminal statuses have no entry, so any attempt to leave them is rejected by lookup.
var allowedTransitions = map[model.Status][]model.Status{
	model.StatusInitialized: {model.StatusPreparing, model.StatusFailed, model.StatusAborted},
	model.StatusPreparing:   {model.StatusReady, model.StatusFailed, model.StatusAborted},
	model.StatusReady:       {model.StatusRunning, model.StatusFailed, model.StatusAborted},
	model.StatusRunning:     {model.StatusCompleted, model.StatusFailed, model.StatusAborted},
}

// canTransition reports whether moving from one status to another is permitted.
func canTransition(from, to model.Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

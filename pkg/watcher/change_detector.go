package watcher

// ReloadPlan describes what a seed file change means for the loaded edges
type ReloadPlan struct {
	Reload       bool
	Reason       string
	ChangedFiles []string
}

// AnalyzeChanges decides whether a debounced change should trigger a reload
func AnalyzeChanges(event ChangeEvent) *ReloadPlan {
	plan := &ReloadPlan{
		ChangedFiles: event.Paths,
	}

	switch event.Type {
	case ChangeTypeWrite:
		plan.Reload = true
		plan.Reason = "seed file changed"

	case ChangeTypeRemove:
		// A removed seed usually means an editor is mid-save; the write that
		// follows triggers the reload. Dropping every edge here would be wrong.
		plan.Reason = "seed file removed; keeping current edges"
	}

	return plan
}

package crawler

// State is where a crawl, or one category of it, currently is.
type State string

const (
	StateStart            State = "start"
	StateCategoriesLoaded State = "categories_loaded"
	StateRunning          State = "running"
	StateFinished         State = "finished"
	StateAborted          State = "aborted"

	// per category
	StateQueued      State = "queued"
	StateEnumerating State = "enumerating"
	StateProcessing  State = "processing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Terminal reports whether a category in state s will not change again.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

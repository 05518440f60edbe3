package domain

// Action is the outcome of processing one requirement.
type Action string

// Sync outcomes.
const (
	// ActionSkipped means the destination already held the expected content.
	ActionSkipped Action = "skipped"
	// ActionLinked means the destination was linked to content materialized earlier in the run.
	ActionLinked Action = "linked"
	// ActionFetched means the artifact was downloaded and verified.
	ActionFetched Action = "fetched"
	// ActionExtracted means the artifact was downloaded, verified and unpacked.
	ActionExtracted Action = "extracted"
	// ActionDuplicate means another requirement already owns the destination.
	ActionDuplicate Action = "duplicate"
)

// Freshness is the outcome of a check run for one requirement.
type Freshness string

// Check outcomes.
const (
	Fresh   Freshness = "fresh"
	Stale   Freshness = "stale"
	Missing Freshness = "missing"
)

// Result records what happened to one requirement.
type Result struct {
	Destination string
	Action      Action
	Digest      Digest
	// Attempts counts fetch calls, zero when nothing was downloaded.
	Attempts int
}

// Report aggregates the results of one run in processing order.
type Report struct {
	Results []Result
}

// Add appends a result.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
}

// Count returns how many results have the given action.
func (r *Report) Count(a Action) int {
	n := 0
	for _, res := range r.Results {
		if res.Action == a {
			n++
		}
	}
	return n
}

// Fetches returns the total number of fetch calls.
func (r *Report) Fetches() int {
	n := 0
	for _, res := range r.Results {
		n += res.Attempts
	}
	return n
}

// Status is one line of a check run.
type Status struct {
	Destination string
	Freshness   Freshness
	Digest      Digest
}

package explore

import "sitescout/internal/fetch"

// RunState is the mutable record of a single exploration. Only the
// controller goroutine that created it may change it.
type RunState struct {
	StartURL string
	Goal     string
	Options  Options

	History    []string
	Best       *Result
	AllResults []Result
	Links      []fetch.Link

	visited map[string]struct{}
}

func newRunState(startURL, goal string, opts Options) *RunState {
	return &RunState{
		StartURL: startURL,
		Goal:     goal,
		Options:  opts,
		History:  make([]string, 0, opts.MaxPages),
		visited:  make(map[string]struct{}),
	}
}

// MarkVisited records url in the history unless its canonical form was
// already seen.
func (s *RunState) MarkVisited(url string) {
	key := fetch.CanonicalURL(url)
	if _, ok := s.visited[key]; ok {
		return
	}
	s.visited[key] = struct{}{}
	s.History = append(s.History, url)
}

// MarkResolved records a fetch of requested that ended at final after
// redirects. The final address counts as visited but not as another page.
func (s *RunState) MarkResolved(requested, final string) {
	s.MarkVisited(requested)
	if final != "" {
		s.visited[fetch.CanonicalURL(final)] = struct{}{}
	}
}

func (s *RunState) Visited(url string) bool {
	_, ok := s.visited[fetch.CanonicalURL(url)]
	return ok
}

// UpdateBest appends r to AllResults and promotes it when it beats the
// current best. A result that satisfies the goal always beats one that
// does not; otherwise only strictly higher confidence wins.
func (s *RunState) UpdateBest(r Result) bool {
	s.AllResults = append(s.AllResults, r)
	if !prefer(r, s.Best) {
		return false
	}
	best := r
	s.Best = &best
	return true
}

func prefer(candidate Result, current *Result) bool {
	if current == nil {
		return true
	}
	if candidate.SatisfiesGoal != current.SatisfiesGoal {
		return candidate.SatisfiesGoal
	}
	return candidate.Confidence > current.Confidence
}

// UnvisitedLinks returns the harvested links not yet fetched, in page order.
func (s *RunState) UnvisitedLinks() []fetch.Link {
	out := make([]fetch.Link, 0, len(s.Links))
	for _, link := range s.Links {
		if !s.Visited(link.URL) {
			out = append(out, link)
		}
	}
	return out
}

func (s *RunState) strategy() Strategy {
	pages := len(s.History)
	batch := s.Options.BatchSize
	switch {
	case pages <= 1:
		return StrategyFirstPageSufficient
	case pages <= batch+1:
		return StrategyBatch
	case pages <= 2*batch+1:
		return StrategyMultiBatch
	default:
		return StrategyExhaustive
	}
}

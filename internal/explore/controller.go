package explore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sitescout/internal/fetch"
)

const (
	defaultMaxPages            = 20
	defaultBatchSize           = 5
	defaultMinScoreThreshold   = 7.0
	defaultConfidenceThreshold = 8.0
	defaultMaxConcurrent       = 1

	// satisfiedConfidence is the confidence at which a satisfying result ends the run.
	satisfiedConfidence = 9.0
	mediumScoreFloor    = 5.0
	groupedSuffix       = " (grouped)"
)

// Options tune a controller. Start from DefaultOptions; zero page and batch
// counts fall back to the defaults, negative thresholds do too.
type Options struct {
	MaxPages            int
	BatchSize           int
	MinScoreThreshold   float64
	ConfidenceThreshold float64
	GroupThreshold      float64
	// MaxConcurrent bounds page fetches in flight within one batch. One
	// means strictly sequential.
	MaxConcurrent int
}

func DefaultOptions() Options {
	return Options{
		MaxPages:            defaultMaxPages,
		BatchSize:           defaultBatchSize,
		MinScoreThreshold:   defaultMinScoreThreshold,
		ConfidenceThreshold: defaultConfidenceThreshold,
		GroupThreshold:      DefaultGroupThreshold,
		MaxConcurrent:       defaultMaxConcurrent,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.MaxPages <= 0 {
		o.MaxPages = defaults.MaxPages
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaults.BatchSize
	}
	if unsetThreshold(o.MinScoreThreshold) {
		o.MinScoreThreshold = defaults.MinScoreThreshold
	}
	if unsetThreshold(o.ConfidenceThreshold) {
		o.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	if o.GroupThreshold <= 0 {
		o.GroupThreshold = defaults.GroupThreshold
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = defaults.MaxConcurrent
	}
	return o
}

// unsetThreshold reports whether a score threshold should fall back to its
// default. Zero is a real threshold that admits every link.
func unsetThreshold(v float64) bool {
	return v < 0 || math.IsNaN(v)
}

// Request describes one run. Zero MaxPages or BatchSize fall back to the
// controller's options.
type Request struct {
	StartURL  string
	Goal      string
	MaxPages  int
	BatchSize int
}

type Controller struct {
	fetcher   PageFetcher
	scorer    LinkScorer
	extractor ContentExtractor
	grouper   LinkGrouper
	notifier  Notifier
	opts      Options
	now       func() time.Time
}

func NewController(fetcher PageFetcher, scorer LinkScorer, extractor ContentExtractor, grouper LinkGrouper, notifier Notifier, opts Options) Controller {
	if grouper == nil {
		grouper = NewEmbeddingGrouper(nil)
	}
	return Controller{
		fetcher:   fetcher,
		scorer:    scorer,
		extractor: extractor,
		grouper:   grouper,
		notifier:  notifier,
		opts:      opts.withDefaults(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (c Controller) Options() Options {
	return c.opts
}

type pageOutcome struct {
	result   Result
	finalURL string
	err      error
}

// Explore runs the whole state machine for req and always returns a
// payload. Only a failed first page produces the error shape.
func (c Controller) Explore(ctx context.Context, req Request, onEvent func(Event)) (payload Payload) {
	opts := c.opts
	if req.MaxPages > 0 {
		opts.MaxPages = req.MaxPages
	}
	if req.BatchSize > 0 {
		opts.BatchSize = req.BatchSize
	}
	state := newRunState(strings.TrimSpace(req.StartURL), strings.TrimSpace(req.Goal), opts)

	defer func() {
		if recovered := recover(); recovered != nil {
			payload = c.errorPayload(ctx, state, fmt.Sprintf("exploration aborted: %v", recovered), onEvent)
		}
	}()

	c.emit(onEvent, Event{Kind: EventPhaseEntered, Phase: PhaseFirstPage, URL: state.StartURL})
	first := c.explorePage(ctx, state.Goal, state.StartURL)
	if first.err != nil {
		c.emit(onEvent, Event{Kind: EventPageFailed, Phase: PhaseFirstPage, URL: state.StartURL, Error: first.err.Error()})
		return c.errorPayload(ctx, state, "failed to fetch first page: "+first.err.Error(), onEvent)
	}
	state.MarkResolved(state.StartURL, first.finalURL)
	state.Links = first.links
	state.UpdateBest(first.result)
	c.emitExplored(onEvent, PhaseFirstPage, 0, first.result)

	if isSatisfied(state.Best) {
		c.emit(onEvent, Event{
			Kind:       EventStopCondition,
			Phase:      PhaseFirstPage,
			Confidence: state.Best.Confidence,
			Message:    "first page satisfies goal",
		})
		return c.compile(ctx, state, StrategyFirstPageSufficient, 0, onEvent)
	}

	c.emit(onEvent, Event{Kind: EventPhaseEntered, Phase: PhaseLinkScoring, Count: len(state.Links)})
	candidates := c.scoreLinks(ctx, state, onEvent)

	c.emit(onEvent, Event{Kind: EventPhaseEntered, Phase: PhaseBatchLoop, Count: len(candidates)})
	batches := c.runBatches(ctx, state, candidates, onEvent)

	return c.compile(ctx, state, state.strategy(), batches, onEvent)
}

type fetchedPage struct {
	pageOutcome
	links []fetch.Link
}

func (c Controller) explorePage(ctx context.Context, goal, url string) (out fetchedPage) {
	defer func() {
		if recovered := recover(); recovered != nil {
			out = fetchedPage{pageOutcome: pageOutcome{err: fmt.Errorf("explore %s: %v", url, recovered)}}
		}
	}()

	if c.fetcher == nil {
		return fetchedPage{pageOutcome: pageOutcome{err: fmt.Errorf("no page fetcher configured")}}
	}
	page, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return fetchedPage{pageOutcome: pageOutcome{err: err}}
	}
	if strings.TrimSpace(page.Text) == "" {
		return fetchedPage{pageOutcome: pageOutcome{err: fetch.ErrEmptyContent}}
	}

	var result Result
	if c.extractor != nil {
		result = c.extractor.Extract(ctx, page.Text, goal, url)
	} else {
		result = emptyResult(url, "no extractor configured")
	}
	if result.URL == "" {
		result.URL = url
	}
	return fetchedPage{pageOutcome: pageOutcome{result: result.Normalize(), finalURL: page.FinalURL}, links: page.Links}
}

// scoreLinks groups the unvisited links, scores one representative per
// group and broadcasts its verdict. The returned candidates are sorted by
// score, highest first, with page order preserved among ties.
func (c Controller) scoreLinks(ctx context.Context, state *RunState, onEvent func(Event)) []LinkCandidate {
	links := state.UnvisitedLinks()
	byURL := make(map[string]fetch.Link, len(links))
	for _, link := range links {
		byURL[link.URL] = link
	}

	groups := c.grouper.Group(ctx, links, state.Options.GroupThreshold)
	c.emit(onEvent, Event{Kind: EventLinksGrouped, Phase: PhaseLinkScoring, Count: len(groups), Pages: len(links)})

	covered := make(map[string]struct{}, len(links))
	candidates := make([]LinkCandidate, 0, len(links))
	scoreGroup := func(group []string) {
		members := make([]fetch.Link, 0, len(group))
		for _, url := range group {
			link, ok := byURL[url]
			if !ok {
				continue
			}
			if _, done := covered[url]; done {
				continue
			}
			covered[url] = struct{}{}
			members = append(members, link)
		}
		if len(members) == 0 {
			return
		}
		rep := members[0]
		score, reasoning := c.score(ctx, rep, state.Goal)
		for _, member := range members {
			candidates = append(candidates, LinkCandidate{
				Score:     score,
				URL:       member.URL,
				Reasoning: reasoning + groupedSuffix,
				Context:   member.Context,
			})
			c.emit(onEvent, Event{Kind: EventLinkScored, Phase: PhaseLinkScoring, URL: member.URL, Score: score, Count: len(members), Message: reasoning})
		}
	}
	for _, group := range groups {
		scoreGroup(group)
	}
	for _, link := range links {
		if _, done := covered[link.URL]; !done {
			scoreGroup([]string{link.URL})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	var high, medium, low int
	for _, candidate := range candidates {
		switch {
		case candidate.Score >= state.Options.MinScoreThreshold:
			high++
		case candidate.Score >= mediumScoreFloor:
			medium++
		default:
			low++
		}
	}
	c.emit(onEvent, Event{Kind: EventLinksRanked, Phase: PhaseLinkScoring, Count: len(candidates), High: high, Medium: medium, Low: low})
	return candidates
}

func (c Controller) score(ctx context.Context, link fetch.Link, goal string) (score float64, reasoning string) {
	defer func() {
		if recovered := recover(); recovered != nil {
			score, reasoning = 0, scoringFailed
		}
	}()
	if c.scorer == nil {
		return 0, scoringFailed
	}
	score, reasoning = c.scorer.Score(ctx, link.URL, link.Context, goal)
	return ClampScore(score), reasoning
}

// eligibleQueue keeps candidates at or above the threshold. When none
// qualify it falls back to the top 2*batchSize so at least one batch runs.
func eligibleQueue(candidates []LinkCandidate, opts Options) []LinkCandidate {
	queue := make([]LinkCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Score >= opts.MinScoreThreshold {
			queue = append(queue, candidate)
		}
	}
	if len(queue) > 0 {
		return queue
	}
	limit := min(2*opts.BatchSize, len(candidates))
	return append(queue, candidates[:limit]...)
}

func (c Controller) runBatches(ctx context.Context, state *RunState, candidates []LinkCandidate, onEvent func(Event)) int {
	opts := state.Options
	queue := eligibleQueue(candidates, opts)
	explored := len(state.History)
	batches := 0

	for len(queue) > 0 && explored < opts.MaxPages {
		if err := ctx.Err(); err != nil {
			c.emit(onEvent, Event{Kind: EventStopCondition, Phase: PhaseBatchLoop, Message: "cancelled", Error: err.Error()})
			break
		}
		size := min(opts.BatchSize, len(queue), opts.MaxPages-explored)
		batch := queue[:size]
		queue = queue[size:]
		batches++
		c.emit(onEvent, Event{Kind: EventBatchStarted, Phase: PhaseBatchLoop, Batch: batches, Count: size, Pages: explored})

		outcomes := c.exploreBatch(ctx, state.Goal, batch)
		explored += size

		for i, outcome := range outcomes {
			url := batch[i].URL
			if outcome.err != nil {
				c.emit(onEvent, Event{Kind: EventPageFailed, Phase: PhaseBatchLoop, Batch: batches, URL: url, Error: outcome.err.Error()})
				continue
			}
			state.MarkResolved(url, outcome.finalURL)
			state.UpdateBest(outcome.result)
			c.emitExplored(onEvent, PhaseBatchLoop, batches, outcome.result)
		}

		completed := Event{Kind: EventBatchCompleted, Phase: PhaseBatchLoop, Batch: batches, Pages: explored, Count: len(queue)}
		if state.Best != nil {
			completed.Confidence = state.Best.Confidence
			completed.SatisfiesGoal = state.Best.SatisfiesGoal
			completed.URL = state.Best.URL
		}
		c.emit(onEvent, completed)

		if isSatisfied(state.Best) {
			c.emit(onEvent, Event{
				Kind:       EventStopCondition,
				Phase:      PhaseBatchLoop,
				Batch:      batches,
				URL:        state.Best.URL,
				Confidence: state.Best.Confidence,
				Message:    "best result satisfies goal",
			})
			break
		}
	}
	return batches
}

// exploreBatch fetches and extracts every link in batch. Outcomes are
// returned in batch order whatever order they complete in; the caller
// applies them only after all of them are in.
func (c Controller) exploreBatch(ctx context.Context, goal string, batch []LinkCandidate) []pageOutcome {
	outcomes := make([]pageOutcome, len(batch))
	if c.opts.MaxConcurrent <= 1 || len(batch) == 1 {
		for i, candidate := range batch {
			outcomes[i] = c.explorePage(ctx, goal, candidate.URL).pageOutcome
		}
		return outcomes
	}

	var group errgroup.Group
	group.SetLimit(c.opts.MaxConcurrent)
	for i, candidate := range batch {
		group.Go(func() error {
			outcomes[i] = c.explorePage(ctx, goal, candidate.URL).pageOutcome
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}

func (c Controller) compile(ctx context.Context, state *RunState, strategy Strategy, batches int, onEvent func(Event)) Payload {
	c.emit(onEvent, Event{Kind: EventPhaseEntered, Phase: PhaseCompile, Pages: len(state.History)})

	best := state.Best
	if best == nil {
		empty := emptyResult(state.StartURL, "")
		best = &empty
	}
	payload := Payload{
		Data: best.Data,
		Metadata: Metadata{
			StartURL:           state.StartURL,
			SuccessfulURL:      best.URL,
			PagesProcessed:     len(state.History),
			ExplorationHistory: append([]string(nil), state.History...),
			Confidence:         best.Confidence,
			ItemCount:          best.ItemCount,
			Strategy:           strategy,
			SatisfiesGoal:      best.SatisfiesGoal,
			BatchesExplored:    batches,
			PartialResult:      best.Confidence < state.Options.ConfidenceThreshold,
			Timestamp:          c.now(),
		},
	}
	c.notify(ctx, state.Goal, &payload, onEvent)
	c.emit(onEvent, Event{
		Kind:          EventRunCompleted,
		Phase:         PhaseCompile,
		URL:           best.URL,
		Confidence:    best.Confidence,
		SatisfiesGoal: best.SatisfiesGoal,
		Pages:         len(state.History),
		Batch:         batches,
		Message:       string(strategy),
	})
	return payload
}

func (c Controller) errorPayload(ctx context.Context, state *RunState, message string, onEvent func(Event)) Payload {
	payload := Payload{
		Error: message,
		Metadata: Metadata{
			StartURL:           state.StartURL,
			PagesProcessed:     len(state.History),
			ExplorationHistory: append([]string(nil), state.History...),
			Timestamp:          c.now(),
		},
	}
	c.notify(ctx, state.Goal, &payload, onEvent)
	c.emit(onEvent, Event{Kind: EventRunCompleted, Phase: PhaseCompile, Error: message, Pages: len(state.History)})
	return payload
}

func (c Controller) notify(ctx context.Context, goal string, payload *Payload, onEvent func(Event)) {
	if c.notifier == nil {
		return
	}
	delivery := func() (d Delivery) {
		defer func() {
			if recovered := recover(); recovered != nil {
				d = Delivery{Message: fmt.Sprintf("Email decision failed: %v", recovered)}
			}
		}()
		return c.notifier.Notify(ctx, goal, *payload)
	}()
	payload.EmailSent = delivery.Sent
	payload.EmailMessage = delivery.Message
	if delivery.Sent || delivery.Message != "" {
		c.emit(onEvent, Event{Kind: EventNotification, Phase: PhaseCompile, Message: delivery.Message})
	}
}

func (c Controller) emitExplored(onEvent func(Event), phase Phase, batch int, result Result) {
	c.emit(onEvent, Event{
		Kind:          EventPageExplored,
		Phase:         phase,
		Batch:         batch,
		URL:           result.URL,
		Confidence:    result.Confidence,
		SatisfiesGoal: result.SatisfiesGoal,
		DataType:      result.DataType,
	})
}

func (c Controller) emit(onEvent func(Event), event Event) {
	if onEvent == nil {
		return
	}
	event.At = c.now()
	onEvent(event)
}

func isSatisfied(best *Result) bool {
	return best != nil && best.SatisfiesGoal && best.Confidence >= satisfiedConfidence
}

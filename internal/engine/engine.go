// Package engine is the top-level facade: it assembles the evaluation
// cascade, the refinement loop, the review queue, and persistence, and
// routes every verdict to its decision's destination.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/cascade"
	"github.com/mkoval/refinex/internal/config"
	"github.com/mkoval/refinex/internal/consensus"
	"github.com/mkoval/refinex/internal/decision"
	"github.com/mkoval/refinex/internal/evaluator"
	"github.com/mkoval/refinex/internal/factcheck"
	"github.com/mkoval/refinex/internal/refine"
	"github.com/mkoval/refinex/internal/review"
	"github.com/mkoval/refinex/internal/rubric"
	"github.com/mkoval/refinex/internal/store"
)

// Options overrides the components New would otherwise build from config.
// Tests inject mock gateways and revisers here; the CLI leaves most fields
// nil.
type Options struct {
	Gateway evaluator.Gateway
	Reviser refine.Reviser
	Checker factcheck.Checker
	Store   *store.Store
	Queue   review.Queue
	Logger  *log.Logger
}

// Engine runs the full pipeline for one rubric.
type Engine struct {
	cfg     *config.Config
	rubric  *rubric.Rubric
	cascade *cascade.Controller
	loop    *refine.Loop
	queue   review.Queue
	store   *store.Store
	logger  *log.Logger
}

// New validates the configuration and rubric, then wires the pipeline.
func New(cfg *config.Config, r *rubric.Rubric, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	gateway := opts.Gateway
	if gateway == nil {
		switch cfg.Evaluator.Provider {
		case config.ProviderOpenRouter:
			gateway = evaluator.NewOpenRouterEvaluator(cfg.Evaluator.APIKey, cfg.Evaluator.BaseURL, cfg.Evaluator.Model)
		default:
			gateway = evaluator.NewOllamaEvaluator(cfg.Evaluator.Model, cfg.Evaluator.BaseURL)
		}
	}
	if cfg.Evaluator.MaxRetries > 0 {
		gateway = evaluator.NewRetryGateway(gateway, uint64(cfg.Evaluator.MaxRetries), 500*time.Millisecond)
	}

	reviser := opts.Reviser
	if reviser == nil {
		reviser = refine.NewOllamaReviser(cfg.Reviser.Model, cfg.Reviser.BaseURL)
	}

	var gate *factcheck.Gate
	if opts.Checker != nil {
		gate = factcheck.NewGate(opts.Checker)
	} else {
		gate = factcheck.NewGate(factcheck.NewOllamaChecker(cfg.Evaluator.Model, cfg.Evaluator.BaseURL))
	}

	engine, err := decision.New(cfg.Thresholds)
	if err != nil {
		return nil, err
	}

	voter := consensus.New(gateway, cfg.Consensus)
	casc := cascade.New(gateway, voter, engine, gate, cfg.Cascade)
	loop := refine.New(casc, reviser, cfg.Refine)

	queue := opts.Queue
	if queue == nil {
		if opts.Store != nil {
			queue = opts.Store
		} else {
			queue = review.NewMemoryQueue()
		}
	}

	return &Engine{
		cfg:     cfg,
		rubric:  r,
		cascade: casc,
		loop:    loop,
		queue:   queue,
		store:   opts.Store,
		logger:  logger,
	}, nil
}

// Evaluate runs one cascade pass without refinement or routing, persisting
// the verdict when a store is wired. Used for evaluation-only runs.
func (e *Engine) Evaluate(ctx context.Context, in cascade.Input) (*internal.Verdict, error) {
	if e.store != nil && !e.cfg.NoCache {
		if cached, found, err := e.store.GetCachedVerdict(ctx, in.Content, e.rubric.Version); err != nil {
			return nil, fmt.Errorf("cache lookup failed: %w", err)
		} else if found {
			e.logger.Printf("content %s: cache hit, decision %s", in.ContentID, cached.Decision)
			return cached, nil
		}
	}

	v, err := e.cascade.Evaluate(ctx, in, e.rubric, e.evalConfig())
	if err != nil {
		return nil, err
	}
	e.logger.Printf("content %s: score %.3f decision %s", in.ContentID, v.OverallScore, v.Decision)

	if e.store != nil {
		if err := e.store.SaveVerdict(ctx, v); err != nil {
			return nil, fmt.Errorf("failed to persist verdict: %w", err)
		}
		if !e.cfg.NoCache {
			if err := e.store.SaveToCache(ctx, in.Content, e.rubric.Version, v); err != nil {
				return nil, fmt.Errorf("failed to cache verdict: %w", err)
			}
		}
	}
	return v, nil
}

// Outcome is what Process did with the content.
type Outcome struct {
	ContentID string            `json:"content_id"`
	Content   string            `json:"content"`
	Verdict   *internal.Verdict `json:"verdict"`
	// Routed names where the content went: published, refined, regenerate,
	// or review.
	Routed     string              `json:"routed"`
	Iterations int                 `json:"iterations"`
	History    []*internal.Verdict `json:"history,omitempty"`
	Rounds     []refine.Round      `json:"rounds,omitempty"`
	FromCache  bool                `json:"from_cache,omitempty"`
	QueueItem  *review.Item        `json:"queue_item,omitempty"`
}

// Routing destinations.
const (
	RoutedPublished  = "published"
	RoutedRefined    = "refined"
	RoutedRegenerate = "regenerate"
	RoutedReview     = "review"
)

func (e *Engine) evalConfig() evaluator.EvalConfig {
	return evaluator.EvalConfig{
		Model:   e.cfg.Evaluator.Model,
		BaseURL: e.cfg.Evaluator.BaseURL,
		APIKey:  e.cfg.Evaluator.APIKey,
		Timeout: time.Duration(e.cfg.Evaluator.TimeoutSeconds) * time.Second,
	}
}

// Process evaluates one piece of content end to end: cache lookup, cascade
// evaluation with bounded refinement, then routing by the final decision.
func (e *Engine) Process(ctx context.Context, in cascade.Input) (*Outcome, error) {
	if e.store != nil && !e.cfg.NoCache {
		if cached, found, err := e.store.GetCachedVerdict(ctx, in.Content, e.rubric.Version); err != nil {
			return nil, fmt.Errorf("cache lookup failed: %w", err)
		} else if found {
			e.logger.Printf("content %s: cache hit, decision %s", in.ContentID, cached.Decision)
			return &Outcome{
				ContentID: in.ContentID,
				Content:   in.Content,
				Verdict:   cached,
				Routed:    e.route(cached.Decision),
				FromCache: true,
			}, nil
		}
	}

	res, err := e.loop.Run(ctx, in, e.rubric, e.evalConfig())
	if err != nil {
		// The loop terminated on a parse or transport failure. The content
		// and its last good verdict still belong in manual review; the
		// typed error propagates to the caller either way.
		if res != nil && res.Verdict != nil {
			if e.store != nil {
				for _, v := range res.History {
					if serr := e.store.SaveVerdict(ctx, v); serr != nil {
						e.logger.Printf("content %s: failed to persist verdict: %v", in.ContentID, serr)
					}
				}
			}
			item, qerr := e.queue.Enqueue(ctx, review.Item{
				ContentID: in.ContentID,
				VerdictID: res.Verdict.ID,
				Content:   res.Content,
				Reason:    fmt.Sprintf("refinement aborted: %v", err),
				Score:     res.Verdict.OverallScore,
			})
			if qerr != nil {
				e.logger.Printf("content %s: failed to enqueue for review: %v", in.ContentID, qerr)
			} else {
				e.logger.Printf("content %s: refinement aborted, escalated to manual review (attempt %d)", in.ContentID, item.Attempts)
			}
		}
		return nil, err
	}

	e.logger.Printf("content %s: score %.3f decision %s after %d iteration(s)",
		in.ContentID, res.Verdict.OverallScore, res.Verdict.Decision, res.Iterations)

	out := &Outcome{
		ContentID:  in.ContentID,
		Content:    res.Content,
		Verdict:    res.Verdict,
		Routed:     routeResult(res),
		Iterations: res.Iterations,
		History:    res.History,
		Rounds:     res.Rounds,
	}

	if e.store != nil {
		for _, v := range res.History {
			if err := e.store.SaveVerdict(ctx, v); err != nil {
				return nil, fmt.Errorf("failed to persist verdict: %w", err)
			}
		}
		if !e.cfg.NoCache {
			if err := e.store.SaveToCache(ctx, res.Content, e.rubric.Version, res.Verdict); err != nil {
				return nil, fmt.Errorf("failed to cache verdict: %w", err)
			}
		}
	}

	if out.Routed == RoutedReview {
		item, err := e.queue.Enqueue(ctx, review.Item{
			ContentID: in.ContentID,
			VerdictID: res.Verdict.ID,
			Content:   res.Content,
			Reason:    res.Verdict.ReasoningSummary,
			Score:     res.Verdict.OverallScore,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to enqueue for review: %w", err)
		}
		out.QueueItem = item
		e.logger.Printf("content %s: escalated to manual review (attempt %d)", in.ContentID, item.Attempts)
	}

	return out, nil
}

// Queue exposes the review queue for CLI listing and status updates.
func (e *Engine) Queue() review.Queue { return e.queue }

// Rubric returns the rubric the engine evaluates against.
func (e *Engine) Rubric() *rubric.Rubric { return e.rubric }

// route maps a standalone decision to a destination, used for cached
// verdicts that carry no loop outcome.
func (e *Engine) route(d internal.Decision) string {
	switch d {
	case internal.DecisionAccept:
		return RoutedPublished
	case internal.DecisionFix:
		return RoutedRefined
	case internal.DecisionRegenerate:
		return RoutedRegenerate
	default:
		return RoutedReview
	}
}

// routeResult maps a loop result to a destination. A fix decision that
// survived the loop means refinement stagnated or ran out of budget, which
// is review material just like an explicit escalate.
func routeResult(res *refine.Result) string {
	switch res.Outcome {
	case refine.OutcomeAccepted:
		return RoutedPublished
	case refine.OutcomeStagnated, refine.OutcomeExhausted:
		return RoutedReview
	}
	if res.Verdict.Decision == internal.DecisionRegenerate {
		return RoutedRegenerate
	}
	return RoutedReview
}

package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/LambaLab/abudhabi-sales-explorer/pkg/analyst"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/duck"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/market"
)

const (
	titleMaxLen         = 60
	parentExcerptMaxLen = 500

	errNoQuery            = "no query could be generated for this intent"
	errReplyInterrupted   = "interrupted"
	errSomethingWentWrong = "Something went wrong"
)

// IntentInterpreter produces a structured intent for a prompt.
type IntentInterpreter interface {
	Interpret(ctx context.Context, req analyst.IntentRequest) (market.Intent, error)
}

// ExplanationStreamer streams analyst commentary for computed statistics.
type ExplanationStreamer interface {
	StreamExplanation(ctx context.Context, mode analyst.Mode, prompt string, intent market.Intent, stats market.SummaryStats, onChunk func(string)) (string, error)
}

// QueryRunner executes a compiled query against the dataset.
type QueryRunner interface {
	Query(ctx context.Context, query string, params ...any) ([]market.Row, error)
}

// MetaProvider supplies the dataset vocabulary for intent grounding.
type MetaProvider interface {
	Meta(ctx context.Context) (duck.Meta, error)
}

type opKind string

const (
	// opTopLevel is the shared slot for top-level analyses: starting a new
	// one always cancels the previous. Deep analyses and replies get their
	// own per-entity slots, so a reply on one post cannot abort a deep
	// analysis in flight on another.
	opTopLevel opKind = "top"
	opDeepen   opKind = "deepen"
	opReply    opKind = "reply"
)

type opKey struct {
	kind opKind
	id   string
}

type opToken struct {
	cancel context.CancelFunc
}

// OrchestratorConfig holds the configuration for an Orchestrator.
type OrchestratorConfig struct {
	Logger    *slog.Logger
	Store     *Store
	Intents   IntentInterpreter
	Explainer ExplanationStreamer
	Queries   QueryRunner
	Meta      MetaProvider
	Clock     clockwork.Clock
	NewID     func() string
}

func (cfg *OrchestratorConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.Intents == nil {
		return fmt.Errorf("intent interpreter is required")
	}
	if cfg.Explainer == nil {
		return fmt.Errorf("explanation streamer is required")
	}
	if cfg.Queries == nil {
		return fmt.Errorf("query runner is required")
	}
	if cfg.Meta == nil {
		return fmt.Errorf("meta provider is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return nil
}

// Orchestrator drives posts and replies through the interpret, query,
// explain pipeline. Entry points create the entity synchronously and run
// the pipeline in a background goroutine; readers poll the store.
type Orchestrator struct {
	log       *slog.Logger
	store     *Store
	intents   IntentInterpreter
	explainer ExplanationStreamer
	queries   QueryRunner
	meta      MetaProvider
	clock     clockwork.Clock
	newID     func() string

	mu  sync.Mutex
	ops map[opKey]*opToken
	wg  sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate orchestrator config: %w", err)
	}
	return &Orchestrator{
		log:       cfg.Logger,
		store:     cfg.Store,
		intents:   cfg.Intents,
		explainer: cfg.Explainer,
		queries:   cfg.Queries,
		meta:      cfg.Meta,
		clock:     cfg.Clock,
		newID:     cfg.NewID,
		ops:       make(map[opKey]*opToken),
	}, nil
}

// Wait blocks until all in-flight pipelines have finished. Used for
// shutdown and tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// begin registers a fresh cancellable operation under key, cancelling any
// operation already holding that slot.
func (o *Orchestrator) begin(key opKey) (context.Context, *opToken) {
	ctx, cancel := context.WithCancel(context.Background())
	token := &opToken{cancel: cancel}

	o.mu.Lock()
	if prev := o.ops[key]; prev != nil {
		prev.cancel()
	}
	o.ops[key] = token
	o.mu.Unlock()
	return ctx, token
}

// end releases the slot, unless a newer operation has already taken it.
func (o *Orchestrator) end(key opKey, token *opToken) {
	o.mu.Lock()
	if o.ops[key] == token {
		delete(o.ops, key)
	}
	o.mu.Unlock()
	token.cancel()
}

// cancelSlot aborts whatever operation holds key, if any.
func (o *Orchestrator) cancelSlot(key opKey) {
	o.mu.Lock()
	token := o.ops[key]
	delete(o.ops, key)
	o.mu.Unlock()
	if token != nil {
		token.cancel()
	}
}

// Analyze starts a top-level analysis, cancelling any analysis already in
// flight. The post is created immediately in status analyzing; the
// returned id can be polled while the pipeline runs.
func (o *Orchestrator) Analyze(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: missing prompt", analyst.ErrValidation)
	}

	id := o.newID()
	o.store.Append(Post{
		ID:        id,
		CreatedAt: o.clock.Now().UnixMilli(),
		Prompt:    prompt,
		Title:     truncate(prompt, titleMaxLen),
		Status:    StatusAnalyzing,
		FullText:  nil,
		ChartData: []market.Row{},
		ChartKeys: []string{},
		Replies:   []Reply{},
	})

	opCtx, token := o.begin(opKey{kind: opTopLevel})
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.end(opKey{kind: opTopLevel}, token)
		o.runAnalyze(opCtx, id, prompt)
	}()
	return id, nil
}

func (o *Orchestrator) runAnalyze(ctx context.Context, id, prompt string) {
	log := o.log.With("postID", id)

	meta, err := o.meta.Meta(ctx)
	if err != nil {
		o.failPost(ctx, id, err)
		return
	}

	intent, err := o.intents.Interpret(ctx, analyst.IntentRequest{Prompt: prompt, Meta: meta})
	if err != nil {
		o.failPost(ctx, id, err)
		return
	}

	o.patchPost(ctx, id, func(p *Post) {
		p.Status = StatusQuerying
		p.Intent = intent
		if intent.Title != "" {
			p.Title = intent.Title
		}
	})

	compiled := market.Compile(intent)
	if compiled.Empty() {
		o.patchPost(ctx, id, func(p *Post) {
			p.Status = StatusError
			p.Error = errNoQuery
		})
		return
	}

	rows, err := o.queries.Query(ctx, compiled.SQL, compiled.Params...)
	if err != nil {
		o.failPost(ctx, id, err)
		return
	}

	series := market.Pivot(rows, intent)
	stats := market.ComputeSummaryStats(rows, intent)

	o.patchPost(ctx, id, func(p *Post) {
		p.Status = StatusExplaining
		p.ChartData = series.ChartData
		p.ChartKeys = series.ChartKeys
		p.SummaryStats = stats
	})

	full, err := o.explainer.StreamExplanation(ctx, analyst.ModeShort, prompt, intent, stats, func(chunk string) {
		o.patchPost(ctx, id, func(p *Post) { p.AnalysisText += chunk })
	})
	if err != nil {
		o.failPost(ctx, id, err)
		return
	}

	if o.patchPost(ctx, id, func(p *Post) {
		p.Status = StatusDone
		p.AnalysisText = full
	}) {
		log.Info("analysis finished", "queryType", intent.QueryType, "rows", len(rows))
	}
}

// AnalyzeDeep escalates a finished post to a long-form explanation. If the
// full text is already cached this is a pure toggle of the expanded flag
// with no network activity.
func (o *Orchestrator) AnalyzeDeep(ctx context.Context, postID string) error {
	post, ok := o.store.Get(postID)
	if !ok {
		return fmt.Errorf("%w: unknown post %q", analyst.ErrValidation, postID)
	}

	if post.FullText != nil {
		o.store.Patch(postID, func(p *Post) { p.IsExpanded = !p.IsExpanded })
		return nil
	}

	// A fresh top-level analysis and a deepening on the same feed fight
	// over the user's attention; the newer request wins.
	o.cancelSlot(opKey{kind: opTopLevel})

	key := opKey{kind: opDeepen, id: postID}
	opCtx, token := o.begin(key)

	o.store.Patch(postID, func(p *Post) { p.Status = StatusDeepening })

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.end(key, token)
		o.runDeepen(opCtx, post)
	}()
	return nil
}

func (o *Orchestrator) runDeepen(ctx context.Context, post Post) {
	full, err := o.explainer.StreamExplanation(ctx, analyst.ModeFull, post.Prompt, post.Intent, post.SummaryStats, func(string) {})
	if err != nil {
		// The short text is still there, so a failed escalation reverts
		// quietly instead of surfacing a hard error.
		o.log.Warn("deep analysis failed, keeping short text", "postID", post.ID, "error", err)
		o.patchPost(ctx, post.ID, func(p *Post) { p.Status = StatusDone })
		return
	}

	o.patchPost(ctx, post.ID, func(p *Post) {
		p.Status = StatusDone
		p.FullText = &full
		p.IsExpanded = true
	})
}

// AnalyzeReply starts a threaded follow-up under a post. The parent's
// prompt, title, and a bounded excerpt of its analysis are passed as
// conversational context so the model can decide whether a new chart is
// needed at all.
func (o *Orchestrator) AnalyzeReply(ctx context.Context, postID, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: missing prompt", analyst.ErrValidation)
	}
	parent, ok := o.store.Get(postID)
	if !ok {
		return "", fmt.Errorf("%w: unknown post %q", analyst.ErrValidation, postID)
	}

	replyID := o.newID()
	o.store.AppendReply(postID, Reply{
		ID:        replyID,
		CreatedAt: o.clock.Now().UnixMilli(),
		Prompt:    prompt,
		Status:    StatusAnalyzing,
		ChartData: []market.Row{},
		ChartKeys: []string{},
	})

	key := opKey{kind: opReply, id: replyID}
	opCtx, token := o.begin(key)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.end(key, token)
		o.runReply(opCtx, parent, replyID, prompt)
	}()
	return replyID, nil
}

func (o *Orchestrator) runReply(ctx context.Context, parent Post, replyID, prompt string) {
	postID := parent.ID

	meta, err := o.meta.Meta(ctx)
	if err != nil {
		o.failReply(ctx, postID, replyID, err)
		return
	}

	intent, err := o.intents.Interpret(ctx, analyst.IntentRequest{
		Prompt: prompt,
		Meta:   meta,
		Context: &analyst.ReplyContext{
			ParentPrompt:   parent.Prompt,
			ParentTitle:    parent.Title,
			ParentAnalysis: truncate(parent.AnalysisText, parentExcerptMaxLen),
		},
	})
	if err != nil {
		o.failReply(ctx, postID, replyID, err)
		return
	}

	// Conversational replies skip querying and explain against the
	// parent's last-known statistics.
	stats := parent.SummaryStats

	if intent.QueryType != market.QueryConversational {
		o.patchReply(ctx, postID, replyID, func(r *Reply) {
			r.Status = StatusQuerying
			r.Intent = intent
		})

		compiled := market.Compile(intent)
		if compiled.Empty() {
			o.patchReply(ctx, postID, replyID, func(r *Reply) {
				r.Status = StatusError
				r.Error = errNoQuery
			})
			return
		}

		rows, err := o.queries.Query(ctx, compiled.SQL, compiled.Params...)
		if err != nil {
			o.failReply(ctx, postID, replyID, err)
			return
		}

		series := market.Pivot(rows, intent)
		if len(rows) > 0 {
			stats = market.ComputeSummaryStats(rows, intent)
		}
		o.patchReply(ctx, postID, replyID, func(r *Reply) {
			r.ChartData = series.ChartData
			r.ChartKeys = series.ChartKeys
		})
	} else {
		o.patchReply(ctx, postID, replyID, func(r *Reply) { r.Intent = intent })
	}

	o.patchReply(ctx, postID, replyID, func(r *Reply) { r.Status = StatusExplaining })

	full, err := o.explainer.StreamExplanation(ctx, analyst.ModeFull, prompt, intent, stats, func(chunk string) {
		o.patchReply(ctx, postID, replyID, func(r *Reply) { r.AnalysisText += chunk })
	})
	if err != nil {
		o.failReply(ctx, postID, replyID, err)
		return
	}

	if !o.patchReply(ctx, postID, replyID, func(r *Reply) {
		r.Status = StatusDone
		r.AnalysisText = full
	}) && ctx.Err() != nil {
		o.failReply(ctx, postID, replyID, ctx.Err())
	}
}

// patchPost mutates the post only if this operation has not been
// cancelled; a superseded operation's late results must not touch state.
func (o *Orchestrator) patchPost(ctx context.Context, id string, fn func(*Post)) bool {
	if ctx.Err() != nil {
		return false
	}
	return o.store.Patch(id, fn)
}

func (o *Orchestrator) patchReply(ctx context.Context, postID, replyID string, fn func(*Reply)) bool {
	if ctx.Err() != nil {
		return false
	}
	return o.store.PatchReply(postID, replyID, fn)
}

// failPost records a pipeline failure. A cancelled post is abandoned
// silently: a newer operation owns the feed now.
func (o *Orchestrator) failPost(ctx context.Context, id string, err error) {
	if ctx.Err() != nil {
		return
	}
	o.log.Warn("analysis failed", "postID", id, "error", err)
	o.store.Patch(id, func(p *Post) {
		p.Status = StatusError
		p.Error = userMessage(err)
	})
}

// failReply records a reply failure. Unlike posts, a cancelled reply gets
// a visible interrupted error; an abandoned reply would otherwise sit
// frozen mid-pipeline forever.
func (o *Orchestrator) failReply(ctx context.Context, postID, replyID string, err error) {
	if ctx.Err() != nil {
		o.store.PatchReply(postID, replyID, func(r *Reply) {
			r.Status = StatusError
			r.Error = errReplyInterrupted
		})
		return
	}
	o.log.Warn("reply failed", "postID", postID, "replyID", replyID, "error", err)
	o.store.PatchReply(postID, replyID, func(r *Reply) {
		r.Status = StatusError
		r.Error = userMessage(err)
	})
}

func userMessage(err error) string {
	if err == nil {
		return errSomethingWentWrong
	}
	return err.Error()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/LambaLab/abudhabi-sales-explorer/pkg/duck"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/market"
)

// projectSampleSize caps how many project names are shown to the model.
const projectSampleSize = 60

const intentMaxTokens = 512

// ReplyContext carries a bounded excerpt of the parent post so the model
// can decide whether a follow-up needs a fresh chart at all.
type ReplyContext struct {
	ParentPrompt   string `json:"parentPrompt"`
	ParentTitle    string `json:"parentTitle"`
	ParentAnalysis string `json:"parentAnalysis"`
}

// IntentRequest is the input to intent interpretation.
type IntentRequest struct {
	Prompt  string
	Meta    duck.Meta
	Context *ReplyContext
}

// IntentConfig holds the configuration for an IntentService.
type IntentConfig struct {
	Logger *slog.Logger
	LLM    LLMClient
	Clock  clockwork.Clock
}

func (cfg *IntentConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.LLM == nil {
		return fmt.Errorf("LLM client is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// IntentService asks the model to turn a free-form question into a
// structured Intent grounded in the dataset's vocabulary.
type IntentService struct {
	log   *slog.Logger
	llm   LLMClient
	clock clockwork.Clock
}

// NewIntentService creates an IntentService.
func NewIntentService(cfg IntentConfig) (*IntentService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate intent config: %w", err)
	}
	return &IntentService{log: cfg.Logger, llm: cfg.LLM, clock: cfg.Clock}, nil
}

// Interpret requests a structured intent for the prompt. Transient upstream
// failures are retried with exponential backoff; unparseable model output
// is an ErrParse, never retried.
func (s *IntentService) Interpret(ctx context.Context, req IntentRequest) (market.Intent, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return market.Intent{}, fmt.Errorf("%w: missing prompt", ErrValidation)
	}
	if len(req.Meta.Projects) == 0 || len(req.Meta.Districts) == 0 || req.Meta.MinDate == "" || req.Meta.MaxDate == "" {
		return market.Intent{}, fmt.Errorf("%w: meta must include projects, districts, layouts, minDate, maxDate", ErrValidation)
	}

	system := intentSystemPrompt
	if req.Context != nil {
		system += replyIntentAddendum
	}
	userMessage := s.buildUserMessage(req)

	var text string
	operation := func() error {
		var err error
		text, err = s.llm.Complete(ctx, system, userMessage, intentMaxTokens)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
	), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return market.Intent{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		s.log.Warn("intent: no JSON object in model response", "textLen", len(text))
		return market.Intent{}, fmt.Errorf("%w: no JSON object in response", ErrParse)
	}

	var intent market.Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		s.log.Warn("intent: model response was not valid JSON", "error", err)
		return market.Intent{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	s.log.Debug("intent interpreted", "queryType", intent.QueryType, "title", intent.Title)
	return intent, nil
}

func (s *IntentService) buildUserMessage(req IntentRequest) string {
	projects := req.Meta.Projects
	if len(projects) > projectSampleSize {
		projects = projects[:projectSampleSize]
	}
	today := s.clock.Now().UTC().Format("2006-01-02")

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %q\n\n", req.Prompt)
	if c := req.Context; c != nil {
		b.WriteString("Conversation context:\n")
		fmt.Fprintf(&b, "- Parent question: %q\n", c.ParentPrompt)
		fmt.Fprintf(&b, "- Parent chart title: %q\n", c.ParentTitle)
		fmt.Fprintf(&b, "- Parent analysis excerpt: %q\n\n", c.ParentAnalysis)
	}
	b.WriteString("Available data values:\n")
	fmt.Fprintf(&b, "- Projects (sample of first %d): %s\n", projectSampleSize, strings.Join(projects, ", "))
	fmt.Fprintf(&b, "- Districts: %s\n", strings.Join(req.Meta.Districts, ", "))
	fmt.Fprintf(&b, "- Layouts: %s\n", strings.Join(req.Meta.Layouts, ", "))
	fmt.Fprintf(&b, "- Data covers: %s to %s\n", req.Meta.MinDate, req.Meta.MaxDate)
	fmt.Fprintf(&b, "- Today's date: %s\n\n", today)
	b.WriteString(`Return ONLY this JSON structure (no markdown, no explanation):
{
  "queryType": "<price_trend|rate_trend|volume_trend|project_comparison|district_comparison|layout_distribution>",
  "filters": {
    "projects": [],
    "districts": [],
    "layouts": [],
    "saleTypes": [],
    "dateFrom": "<YYYY-MM or null>",
    "dateTo": "<YYYY-MM or null>"
  },
  "chartType": "<line|bar|multiline>",
  "title": "<max 60 chars>"
}`)
	return b.String()
}

// extractJSONObject returns the outermost {...} span of text.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

package recovery

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/storyforge-dev/storyforge/internal/utils"
)

// ChaptersField is the fixed field name the shape invariant checks for.
const ChaptersField = "chapters"

// HasChapters reports whether the parsed value satisfies the one mandatory
// shape invariant: a chapters field holding an ordered sequence. Element
// shape, count and content are deliberately not validated here; chapter
// count enforcement belongs to the caller, where a mismatch is a retryable
// application error rather than a parse failure.
func HasChapters(doc map[string]any) bool {
	v, ok := doc[ChaptersField]
	if !ok {
		return false
	}
	_, ok = v.([]any)
	return ok
}

// Engine runs the escalation ladder. The zero configuration from [New] is
// what [Extract] uses; options exist for a custom logger and for replacing
// the repair function in tests.
//
// Engines hold no mutable state across calls, so a single Engine is safe
// for concurrent use.
type Engine struct {
	logger *slog.Logger
	repair RepairFunc
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the logger used for debug diagnostics. Raw model text is
// only ever logged here, never returned in errors.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRepairFunc replaces the default [Repair] implementation. Intended for
// tests that need to observe or stub repair work.
func WithRepairFunc(fn RepairFunc) Option {
	return func(e *Engine) { e.repair = fn }
}

// New creates an Engine with the default repair pass and logger.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default(),
		repair: Repair,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// Extract runs the default engine over raw model output. See
// [Engine.Extract].
func Extract(raw string) (map[string]any, error) {
	return defaultEngine.Extract(raw)
}

// stage is one rung of the escalation ladder: a pure transform from the
// located candidate to a parse attempt. Stages are ordered from "trust the
// model" to "aggressive salvage" and evaluated until the first success.
type stage struct {
	name      string
	transform func(Candidate) (string, error)
}

func (e *Engine) stages() []stage {
	return []stage{
		{
			// Fast path: well-behaved output parses as-is.
			name: "strict",
			transform: func(c Candidate) (string, error) {
				return c.Text, nil
			},
		},
		{
			name: "repair",
			transform: func(c Candidate) (string, error) {
				return e.retrim(e.repair(c)), nil
			},
		},
		{
			name: "aggressive",
			transform: func(c Candidate) (string, error) {
				stripped := Candidate{Text: stripControl(c.Text), Unterminated: c.Unterminated}
				return e.retrim(e.repair(stripped)), nil
			},
		},
		{
			// Last resort: hand the original candidate to a general-purpose
			// repairer. Still subject to the same parse and shape checks.
			name: "jsonrepair",
			transform: func(c Candidate) (string, error) {
				return jsonrepair.JSONRepair(c.Text)
			},
		},
	}
}

// retrim re-locates the object boundary on repaired text. Defensive: repair
// may have introduced or removed leading characters.
func (e *Engine) retrim(text string) string {
	c, err := Locate(text)
	if err != nil {
		return text
	}
	return c.Text
}

// Extract is the public entry point: it normalises the raw text, locates
// the candidate object and walks the escalation ladder, returning the first
// parsed document that satisfies the shape invariant.
//
// Input with no opening brace fails immediately with [ErrNoObject]; no
// repair work is attempted. A document that parses but has no chapters list
// fails with [ErrShape] without further escalation, since structural repair
// never invents missing fields. Exhausting every stage yields [ErrRecovery].
func (e *Engine) Extract(raw string) (map[string]any, error) {
	cand, err := Locate(Normalize(raw))
	if err != nil {
		return nil, err
	}

	var last string
	for _, st := range e.stages() {
		text, err := st.transform(cand)
		if err != nil {
			e.logger.Debug("recovery stage unavailable", "stage", st.name, "error", err)
			continue
		}
		last = text

		var doc map[string]any
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			e.logger.Debug("recovery stage parse failed", "stage", st.name, "error", err)
			continue
		}
		if !HasChapters(doc) {
			e.logger.Debug("parsed document is missing chapters", "stage", st.name)
			return nil, ErrShape
		}
		return doc, nil
	}

	e.logger.Debug("all recovery stages exhausted",
		"last_candidate", utils.TruncateString(last, utils.DefaultMaxStringLength))
	return nil, ErrRecovery
}

// ExtractList recovers a JSON array of values from raw model output, for
// responses that are a bare list rather than a blueprint object (e.g. the
// story doctor's suggestion list). The same fence/quote normalisation
// applies; salvage falls back to the general repairer.
func (e *Engine) ExtractList(raw string) ([]any, error) {
	text := Normalize(raw)
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return nil, ErrNoObject
	}
	if end := strings.LastIndexByte(text, ']'); end > start {
		text = text[start : end+1]
	} else {
		text = text[start:]
	}

	var list []any
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return list, nil
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		e.logger.Debug("list salvage failed", "error", err)
		return nil, ErrRecovery
	}
	if err := json.Unmarshal([]byte(repaired), &list); err != nil {
		e.logger.Debug("repaired list still unparseable", "error", err)
		return nil, ErrRecovery
	}
	return list, nil
}

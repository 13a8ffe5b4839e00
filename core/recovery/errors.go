package recovery

import "errors"

// Sentinel errors returned by the engine. They are deliberately free of raw
// model text: the input may contain anything the model produced, so
// diagnostics go to the logger at debug level while callers only ever see
// these stable, user-safe messages.
var (
	// ErrNoObject means the input contained no opening brace at all: the
	// model produced no structured attempt, which is not repairable.
	ErrNoObject = errors.New("model output contains no JSON object")

	// ErrShape means the text parsed as valid JSON but lacks the required
	// array-valued chapters field. Callers typically retry the model call
	// with adjusted instructions rather than re-attempting the parse.
	ErrShape = errors.New("model output is missing the chapters list")

	// ErrRecovery means every escalation stage was exhausted without
	// producing a document that satisfies the shape invariant.
	ErrRecovery = errors.New("failed to produce a valid structured document; please retry")
)

// Package recovery turns free-form LLM output into a guaranteed-valid story
// blueprint document. Models asked for strict JSON routinely wrap it in prose
// or markdown fences, truncate mid-token, leave unescaped control characters
// inside string literals, or drop closing braces. This package locates the
// candidate object inside the surrounding text, re-serialises it through a
// string-aware single-pass repairer, and escalates through progressively more
// aggressive strategies until one parse succeeds or all are exhausted.
//
// The main entry point is [Extract] (or [Engine.Extract] when a custom logger
// or repair hook is needed). Success is all-or-nothing: a document is only
// returned when it parses as JSON and carries an array-valued "chapters"
// field, so callers never silently operate on a blueprint missing its
// chapter list.
package recovery

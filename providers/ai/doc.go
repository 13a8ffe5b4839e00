// Package ai defines the provider-neutral contract for text generation.
// Concrete providers live in subpackages (currently only Gemini, which is
// what the application targets); the story service and HTTP layer depend
// only on the [Provider] interface so tests can substitute fakes.
package ai

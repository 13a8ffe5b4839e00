package ai

import "context"

// GenerationConfig carries the sampling parameters forwarded to the model.
// Nil pointer fields mean "use the provider default".
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

// Sanitize clamps every set field into the range the API accepts:
// temperature 0–2, topP 0–1, topK 1–128, maxOutputTokens 1–32768. It returns
// the receiver for chaining and is a no-op on nil.
func (c *GenerationConfig) Sanitize() *GenerationConfig {
	if c == nil {
		return nil
	}
	if c.Temperature != nil {
		*c.Temperature = clamp(*c.Temperature, 0, 2)
	}
	if c.TopP != nil {
		*c.TopP = clamp(*c.TopP, 0, 1)
	}
	if c.TopK != nil {
		*c.TopK = clamp(*c.TopK, 1, 128)
	}
	if c.MaxOutputTokens != nil {
		*c.MaxOutputTokens = clamp(*c.MaxOutputTokens, 1, 32768)
	}
	return c
}

func clamp[T int | float64](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TextRequest is a single text-generation call. JSONMode asks the model for
// a structured-output response; the recovery engine still treats the result
// as untrusted.
type TextRequest struct {
	SystemPrompt string
	UserPrompt   string
	JSONMode     bool
	Model        string // optional override of the provider's configured model
	Config       *GenerationConfig
}

// StreamHandler receives each text chunk of a streaming response. Returning
// an error aborts the stream.
type StreamHandler func(chunk string) error

// Provider is the model backend contract. Implementations must be safe for
// concurrent use; each call is independent.
type Provider interface {
	// GenerateText performs one blocking generation call and returns the
	// full response text.
	GenerateText(ctx context.Context, req TextRequest) (string, error)

	// StreamText performs a streaming generation call, invoking handler for
	// each chunk as it arrives.
	StreamText(ctx context.Context, req TextRequest, handler StreamHandler) error
}

// ImageGenerator is implemented by providers that can also produce images.
// The result is a data URL suitable for direct embedding.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

package study

import "context"

// ModelClient is the external AI collaborator. Implementations supply the
// response, the model identifier and token counts; this core only measures
// and records them.
type ModelClient interface {
	Chat(ctx context.Context, prompt string, parameters map[string]interface{}) (ModelResult, error)
	GenerateImage(ctx context.Context, prompt string, parameters map[string]interface{}) (ModelResult, error)
}

type ModelResult struct {
	Output     string
	Model      string
	TokenUsage map[string]interface{}
}

package llm

import "context"

// NullProvider is selected when summarization is disabled
type NullProvider struct{}

func (NullProvider) Name() string { return "none" }

// Complete always returns the unavailable placeholder
func (NullProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Text: UnavailablePlaceholder, Model: "none"}, nil
}

func (NullProvider) Check(ctx context.Context) error { return nil }

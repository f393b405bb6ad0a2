package client

import (
	"context"
)

// VisionClient is implemented by chat-capable vision model backends. The
// response is the model's raw text; callers own any structured parsing.
type VisionClient interface {
	Query(ctx context.Context, model, prompt, imgB64 string) (string, error)
}

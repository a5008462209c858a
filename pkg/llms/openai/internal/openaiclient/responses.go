package openaiclient

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

// DefaultMaxOutputTokens is used when the request does not set MaxOutputTokens
const DefaultMaxOutputTokens = 4096

// CreateResponse creates a response using the Responses API.
func (c *Client) CreateResponse(ctx context.Context, r *responses.ResponseNewParams) (*responses.Response, error) {
	if r.Model == "" {
		r.Model = c.Model
	}
	if !r.MaxOutputTokens.Valid() {
		r.MaxOutputTokens = param.NewOpt(int64(DefaultMaxOutputTokens))
	}

	var resp responses.Response
	if err := c.post(ctx, "/responses", r.Model, r, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case responses.ResponseStatusFailed, responses.ResponseStatusCancelled:
		msg := resp.Error.Message
		if msg == "" {
			msg = string(resp.Status)
		}
		return nil, errors.Newf("response %s: %s", resp.ID, msg)
	}
	if len(resp.Output) == 0 {
		return nil, ErrEmptyResponse
	}
	return &resp, nil
}

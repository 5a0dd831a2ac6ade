package llm

import (
	"context"
	"encoding/json"

	"github.com/foliolab/enrich/internal/apperrors"
)

// CompleteJSON issues req and unmarshals the response text into out.
// A response that fails to parse is retried once with a fresh
// completion — this retry is for malformed model output and is
// separate from the transport-level retry each provider already
// applies to rate limits and server errors. A second malformed
// response returns a SchemaError attributed to stage.
func (c *Chain) CompleteJSON(ctx context.Context, stage string, req Request, out interface{}) (*Response, error) {
	var parseErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		if parseErr = json.Unmarshal([]byte(resp.Text), out); parseErr == nil {
			return resp, nil
		}
		if attempt == 0 {
			c.log.Warnf("%s returned malformed structured output, retrying once: %v", stage, parseErr)
		}
	}
	return nil, apperrors.NewSchemaError(stage, "malformed structured response after retry", parseErr)
}

package normalize

import "context"

// InlineSource treats the locator itself as the document text,
// covering submissions that post raw text directly rather than
// pointing at stored bytes.
type InlineSource struct{}

func (InlineSource) Fetch(_ context.Context, locator string) (string, error) {
	return locator, nil
}

package normalize

import "context"

// Source fetches the raw bytes of a document given a locator string.
// The submission API accepts a source kind alongside the locator and
// dispatches to the matching Source implementation.
type Source interface {
	Fetch(ctx context.Context, locator string) (text string, err error)
}

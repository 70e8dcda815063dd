package upstream

import (
	"context"

	"github.com/giantswarm/mcp-backoffice/session"
)

// Page is one decoded upstream page: its validated rows in response order
// plus the vendor-provided link to the next page (empty on the last page).
type Page[T any] struct {
	Rows     []T
	NextLink string
}

// PageParser decodes and validates one raw page body.
type PageParser[T any] func(body []byte) (Page[T], error)

// FetchAll follows the vendor's next-page link from initialURL until absent,
// appending each page's rows in response order. The result is consumed
// eagerly into one ordered slice because the tool contract returns a single
// JSON array. No deduplication is performed; vendor ordering and page
// boundaries are trusted verbatim.
func FetchAll[T any](ctx context.Context, e *Executor, cred *session.Credential, initialURL string, parse PageParser[T]) ([]T, error) {
	var rows []T

	url := initialURL
	for url != "" {
		body, err := e.Get(ctx, url, cred)
		if err != nil {
			return nil, err
		}

		page, err := parse(body)
		if err != nil {
			return nil, err
		}

		rows = append(rows, page.Rows...)
		url = page.NextLink
	}

	return rows, nil
}

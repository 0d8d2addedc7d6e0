// Package browser wraps the browser-automation engine behind a small page
// surface so the scrapers never talk to the CDP driver directly.
package browser

import (
	"context"
	"net/http"
	"time"
)

// Page is one browser tab. All methods honor the deadline of the passed
// context on top of whatever timeout the underlying driver applies.
type Page interface {
	// Navigate loads the url and returns once the DOM content has loaded.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the selector matches a visible element or
	// the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// Evaluate runs a javascript expression, awaits it if it yields a
	// promise, and unmarshals the result into out. out may be nil.
	Evaluate(ctx context.Context, expression string, out any) error
	// OuterHTML returns the serialized markup of the first element
	// matching the selector.
	OuterHTML(ctx context.Context, selector string) (string, error)
	// Cookies returns the cookies visible to the current page.
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

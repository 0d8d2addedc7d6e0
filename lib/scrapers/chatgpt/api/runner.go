// Package api drives the chat service's private conversation endpoints.
// Requests normally run as in-page fetches inside the authenticated browser
// tab so the session cookies apply; a direct HTTP runner seeded with the
// same cookies exists as a secondary path.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"chatexport/lib/browser"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/chatgpt/api")

// Runner performs one GET against a service-relative path and returns the
// JSON response body.
type Runner interface {
	FetchJSON(ctx context.Context, path string) (json.RawMessage, error)
}

// PageRunner issues requests with the page's own fetch(), which makes the
// browser attach the session cookies and origin headers for us.
type PageRunner struct {
	Page browser.Page
}

// the error carries the status so a non-2xx ends up as an Evaluate error
// on the Go side, same as a transport failure.
const fetchScript = `(async () => {
	const r = await fetch(%s, { credentials: 'include' });
	if (!r.ok) {
		throw new Error('unexpected status ' + r.status);
	}
	return await r.text();
})()`

func (r PageRunner) FetchJSON(ctx context.Context, path string) (json.RawMessage, error) {
	var body string
	err := r.Page.Evaluate(ctx, fmt.Sprintf(fetchScript, strconv.Quote(path)), &body)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(body)) {
		return nil, fmt.Errorf("response is not json: %q", truncate(body, 64))
	}
	return json.RawMessage(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

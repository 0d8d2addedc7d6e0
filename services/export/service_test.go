package export

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"chatexport/lib/scrapers/chatgpt"
	"chatexport/lib/scrapers/chatgpt/api"
	"chatexport/services/export/archive"

	"github.com/stretchr/testify/require"
)

// servicePage is a scripted browser tab: in-page fetches are answered from a
// canned path->body map, DOM probes from canned markup and counters.
type servicePage struct {
	// in-page fetch responses keyed by request path; missing paths fail
	responses map[string]string
	// selectors the sidebar existence probe reports as present
	existing []string
	// result of the sidebar link-count script
	linkCount int
	// document height reported during scroll settling
	height int
	// markup returned by OuterHTML, keyed by selector
	markup map[string]string

	navigated []string
}

func (p *servicePage) Navigate(ctx context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *servicePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}

func (p *servicePage) Click(ctx context.Context, selector string) error {
	return nil
}

func (p *servicePage) Evaluate(ctx context.Context, expression string, out any) error {
	switch {
	case strings.Contains(expression, "await fetch("):
		for path, body := range p.responses {
			if strings.Contains(expression, strconv.Quote(path)) {
				*out.(*string) = body
				return nil
			}
		}
		return fmt.Errorf("no canned response")
	case expression == "document.body.scrollHeight":
		*out.(*int) = p.height
	case strings.Contains(expression, ".reduce("):
		*out.(*int) = p.linkCount
	case strings.Contains(expression, "!== null"):
		exists := false
		for _, sel := range p.existing {
			if strings.Contains(expression, fmt.Sprintf("%q", sel)) {
				exists = true
				break
			}
		}
		*out.(*bool) = exists
	}
	return nil
}

func (p *servicePage) OuterHTML(ctx context.Context, selector string) (string, error) {
	markup, ok := p.markup[selector]
	if !ok {
		return "", fmt.Errorf("no markup for %s", selector)
	}
	return markup, nil
}

func (p *servicePage) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	return nil, nil
}

const listingBody = `{
	"items": [{"id": "c1", "title": "Hello"}],
	"has_more": false,
	"limit": 50
}`

const detailBody = `{
	"title": "Hello",
	"mapping": {
		"n2": {"message": {"author": {"role": "assistant"}, "create_time": 2, "content": {"parts": ["Hello!"]}}},
		"n1": {"message": {"author": {"role": "user"}, "create_time": 1, "content": {"content_type": "text", "parts": ["Hi"]}}}
	}
}`

func TestRunExportsViaApi(t *testing.T) {
	ctx := context.Background()

	arch, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	defer arch.Close()

	page := &servicePage{
		responses: map[string]string{
			"/backend-api/conversations?offset=0&limit=50&order=updated": listingBody,
			"/backend-api/conversation/c1":                               detailBody,
		},
	}

	svc := NewService(Options{Page: page, Archive: arch})
	doc, err := svc.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, SourceTag, doc.Source)
	require.NotZero(t, doc.ExportedAt)
	require.Equal(t, []chatgpt.Conversation{{
		Id:    "c1",
		Url:   "https://chat.openai.com/c/c1",
		Title: "Hello",
		Messages: []chatgpt.Message{
			{Role: chatgpt.RoleUser, Text: "Hi"},
			{Role: chatgpt.RoleAssistant, Text: "Hello!"},
		},
	}}, doc.Conversations)

	// the raw detail payload ends up archived verbatim
	rows, err := arch.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "c1", rows[0].ConversationId)
	require.JSONEq(t, detailBody, rows[0].Payload)
}

func TestRunKeepsHeaderOnlyRecordWhenDetailFails(t *testing.T) {
	page := &servicePage{
		responses: map[string]string{
			"/backend-api/conversations?offset=0&limit=50&order=updated": listingBody,
		},
	}

	svc := NewService(Options{Page: page})
	doc, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []chatgpt.Conversation{{
		Id:       "c1",
		Url:      "https://chat.openai.com/c/c1",
		Title:    "Hello",
		Messages: []chatgpt.Message{},
	}}, doc.Conversations)
}

type fakeRunner struct {
	responses map[string]string
}

func (f fakeRunner) FetchJSON(ctx context.Context, path string) (json.RawMessage, error) {
	body, ok := f.responses[path]
	if !ok {
		return nil, fmt.Errorf("no response for %s", path)
	}
	return json.RawMessage(body), nil
}

func TestRunRetriesListingOverDirectHttp(t *testing.T) {
	// in-page fetches all fail, only the direct client answers
	page := &servicePage{}
	direct := fakeRunner{
		responses: map[string]string{
			"/backend-api/conversations?offset=0&limit=50&order=updated": listingBody,
			"/backend-api/conversation/c1":                               detailBody,
		},
	}

	svc := NewService(Options{
		Page: page,
		DirectRunner: func(ctx context.Context) (api.Runner, error) {
			return direct, nil
		},
	})
	doc, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, doc.Conversations, 1)
	require.Equal(t, "c1", doc.Conversations[0].Id)
	require.Len(t, doc.Conversations[0].Messages, 2)
}

func TestRunFallsBackToDomScraping(t *testing.T) {
	page := &servicePage{
		existing:  []string{`[data-testid="sidebar"]`},
		linkCount: 1,
		height:    900,
		markup: map[string]string{
			`[data-testid="sidebar"]`: `
				<nav>
					<a href="/c/x1" title="Trip planning">Trip pl…</a>
				</nav>
			`,
			"body": `
				<body>
					<header><h1>Trip planning</h1></header>
					<main>
						<div data-message-author-role="user"><div class="markdown">Hi there</div></div>
						<div data-message-author-role="assistant"><div class="markdown">Hello!</div></div>
					</main>
				</body>
			`,
		},
	}

	svc := NewService(Options{Page: page})
	doc, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []chatgpt.Conversation{{
		Id:    "x1",
		Url:   "https://chat.openai.com/c/x1",
		Title: "Trip planning",
		Messages: []chatgpt.Message{
			{Role: chatgpt.RoleUser, Text: "Hi there", Html: "Hi there"},
			{Role: chatgpt.RoleAssistant, Text: "Hello!", Html: "Hello!"},
		},
	}}, doc.Conversations)

	// the fallback navigated into the conversation it discovered
	require.Contains(t, page.navigated, "https://chat.openai.com/c/x1")
}

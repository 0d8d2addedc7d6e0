package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
)

const DefaultPageSize = 50

// the two listing endpoint variants, tried in order on every page.
var listEndpoints = []string{
	"/backend-api/conversations",
	"/api/conversations",
}

type ListEntry struct {
	Id             string `json:"id"`
	ConversationId string `json:"conversation_id"`
	Title          string `json:"title"`
}

// Key returns the service-assigned identifier of the entry, whichever field
// it arrived in.
func (e ListEntry) Key() string {
	if e.Id != "" {
		return e.Id
	}
	return e.ConversationId
}

// listPage accepts both known response shapes: the current one carries
// `items`, the legacy one `conversations`. A nil slice for both means the
// shape is unknown and listing should stop.
type listPage struct {
	Items         []ListEntry `json:"items"`
	Conversations []ListEntry `json:"conversations"`
	HasMore       bool        `json:"has_more"`
	Limit         int         `json:"limit"`
}

func (p listPage) entries() ([]ListEntry, bool) {
	if p.Items != nil {
		return p.Items, true
	}
	if p.Conversations != nil {
		return p.Conversations, true
	}
	return nil, false
}

// List pages through the listing endpoints until the service reports no
// more entries. Every failure mode — transport error, non-2xx, unknown
// response shape — terminates the listing gracefully with whatever was
// accumulated so far. No cross-page de-duplication is performed.
func List(ctx context.Context, runner Runner, pageSize int) []ListEntry {
	ctx, span := tracer.Start(ctx, "List")
	defer span.End()

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var out []ListEntry
	offset := 0
	for {
		page, ok := listOnePage(ctx, runner, offset, pageSize)
		if !ok {
			break
		}
		entries, known := page.entries()
		if !known {
			slog.DebugContext(ctx, "listing stopped on unknown response shape", "offset", offset)
			break
		}
		out = append(out, entries...)
		if !page.HasMore {
			break
		}
		if page.Limit > 0 {
			offset += page.Limit
		} else {
			offset += pageSize
		}
	}

	span.SetAttributes(attribute.Int("listed", len(out)))
	return out
}

func listOnePage(ctx context.Context, runner Runner, offset, limit int) (listPage, bool) {
	for _, endpoint := range listEndpoints {
		path := fmt.Sprintf("%s?offset=%d&limit=%d&order=updated", endpoint, offset, limit)

		body, err := runner.FetchJSON(ctx, path)
		if err != nil {
			slog.DebugContext(ctx, "listing endpoint failed", "path", path, "err", err)
			continue
		}

		var page listPage
		err = json.Unmarshal(body, &page)
		if err != nil {
			slog.WarnContext(ctx, "failed to decode listing page", "path", path, "err", err)
			continue
		}
		return page, true
	}
	return listPage{}, false
}

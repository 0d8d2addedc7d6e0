package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"chatexport/lib/scrapers/chatgpt"

	"go.opentelemetry.io/otel/attribute"
)

// the two detail endpoint variants, first success wins.
var detailEndpoints = []string{
	"/backend-api/conversation/%s",
	"/api/conversation/%s",
}

// Fetch retrieves the full detail payload of one conversation. Per-variant
// failures are swallowed; when every variant fails the conversation is
// reported absent (ok=false) rather than as an error, and the caller is
// expected to emit a header-only record. The raw body is returned alongside
// the decoded payload so it can be archived verbatim.
func Fetch(ctx context.Context, runner Runner, id string) (raw chatgpt.RawConversation, body json.RawMessage, ok bool) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("conversation_id", id))

	for _, pattern := range detailEndpoints {
		path := fmt.Sprintf(pattern, url.PathEscape(id))

		body, err := runner.FetchJSON(ctx, path)
		if err != nil {
			slog.DebugContext(ctx, "detail endpoint failed", "path", path, "err", err)
			continue
		}

		var raw chatgpt.RawConversation
		err = json.Unmarshal(body, &raw)
		if err != nil {
			slog.WarnContext(ctx, "failed to decode detail payload", "path", path, "err", err)
			continue
		}
		return raw, body, true
	}

	return chatgpt.RawConversation{}, nil, false
}

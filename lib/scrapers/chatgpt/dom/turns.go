package dom

import (
	"context"
	"log/slog"
	"strings"

	"chatexport/lib/scrapers/chatgpt"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/attribute"
)

// ScrapeConversation extracts the title and ordered message turns of the
// conversation page currently loaded in the tab. sidebarTitle is the name
// the link carried in the sidebar; it is the fallback when the page itself
// exposes no title.
func (s *Scraper) ScrapeConversation(ctx context.Context, sidebarTitle string) (string, []chatgpt.Message) {
	ctx, span := tracer.Start(ctx, "ScrapeConversation")
	defer span.End()

	s.settleHeight(ctx)

	markup, err := s.page.OuterHTML(ctx, "body")
	if err != nil {
		slog.WarnContext(ctx, "failed to capture conversation markup", "err", err)
		return fallbackTitle(sidebarTitle), nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		slog.WarnContext(ctx, "failed to parse conversation markup", "err", err)
		return fallbackTitle(sidebarTitle), nil
	}

	title := s.pageTitle(ctx, doc, sidebarTitle)
	messages := s.extractTurns(doc)

	span.SetAttributes(
		attribute.String("title", title),
		attribute.Int("turns", len(messages)),
	)
	return title, messages
}

// settleHeight scrolls to the bottom until the document height stops
// changing, so lazily rendered turns are all in the tree before capture.
func (s *Scraper) settleHeight(ctx context.Context) {
	err := s.page.Evaluate(ctx, `window.scrollTo(0, 0)`, nil)
	if err != nil {
		return
	}

	lastHeight := -1
	for pass := 0; pass < maxHeightPasses; pass++ {
		err := s.page.Evaluate(ctx, `window.scrollTo(0, document.body.scrollHeight)`, nil)
		if err != nil {
			return
		}
		s.pause(ctx, heightPause)

		var height int
		err = s.page.Evaluate(ctx, `document.body.scrollHeight`, &height)
		if err != nil {
			return
		}
		if height == lastHeight {
			return
		}
		lastHeight = height
	}
}

func (s *Scraper) pageTitle(ctx context.Context, doc *goquery.Document, sidebarTitle string) string {
	pageTitle := ""
	for _, candidate := range s.sel.TitleCandidates {
		found := strings.TrimSpace(doc.Find(candidate).First().Text())
		if found != "" {
			pageTitle = found
			break
		}
	}

	if pageTitle == "" {
		return fallbackTitle(sidebarTitle)
	}
	if sidebarTitle != "" && pageTitle != sidebarTitle {
		// the page rendering wins, the sidebar often truncates. log when
		// the two don't even resemble each other, that usually means a
		// title selector started matching the wrong element.
		similarity := matchr.JaroWinkler(pageTitle, sidebarTitle, false)
		if similarity < 0.5 {
			slog.DebugContext(
				ctx, "page title diverges from sidebar link",
				"page", pageTitle,
				"sidebar", sidebarTitle,
				"similarity", similarity,
			)
		}
	}
	return pageTitle
}

func fallbackTitle(sidebarTitle string) string {
	if sidebarTitle != "" {
		return sidebarTitle
	}
	return chatgpt.DefaultTitle
}

func (s *Scraper) extractTurns(doc *goquery.Document) []chatgpt.Message {
	turnSelector := fallbackTurnSelector
	for _, candidate := range s.sel.TurnCandidates {
		if doc.Find(candidate).Length() > 0 {
			turnSelector = candidate
			break
		}
	}

	var messages []chatgpt.Message
	doc.Find(turnSelector).Each(func(_ int, turn *goquery.Selection) {
		content := s.turnContent(turn)
		messages = append(messages, chatgpt.Message{
			Role: s.turnRole(turn),
			Text: turnText(content),
			Html: turnHtml(content),
		})
	})
	return messages
}

// turnRole reads the author role off the turn itself or any role-bearing
// descendant, defaulting to assistant.
func (s *Scraper) turnRole(turn *goquery.Selection) string {
	if role, ok := turn.Attr(s.sel.RoleAttr); ok && role != "" {
		return role
	}
	role := turn.Find("[" + s.sel.RoleAttr + "]").First().AttrOr(s.sel.RoleAttr, "")
	if role == "" {
		return chatgpt.RoleAssistant
	}
	return role
}

// turnContent finds the first matching content candidate within the turn,
// falling back to the turn element itself.
func (s *Scraper) turnContent(turn *goquery.Selection) *goquery.Selection {
	for _, candidate := range s.sel.ContentCandidates {
		content := turn.Find(candidate)
		if content.Length() > 0 {
			return content.First()
		}
	}
	return turn
}

func turnText(content *goquery.Selection) string {
	return strings.TrimSpace(content.Text())
}

func turnHtml(content *goquery.Selection) string {
	markup, err := content.Html()
	if err != nil {
		return ""
	}
	return markup
}

// Package dom scrapes conversations out of the rendered page when the API
// path comes up empty. Everything here is best effort: a failed selector
// lookup degrades a single field, never the run.
package dom

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chatexport/lib/browser"
	"chatexport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("scrapers/chatgpt/dom")

const (
	// sidebar scroll-and-settle bounds
	scrollPause      = time.Millisecond * 800
	maxScrollPasses  = 80
	stablePassTarget = 3
	// extra pause jitter so passes don't fire on a metronome
	maxJitterMs = 250

	// conversation page height-settle bounds
	heightPause     = time.Millisecond * 250
	maxHeightPasses = 60
)

type Link struct {
	Url   string
	Title string
}

type Scraper struct {
	page browser.Page
	sel  Selectors
	base *url.URL
}

func NewScraper(page browser.Page, baseUrl string, sel Selectors) (*Scraper, error) {
	base, err := url.Parse(baseUrl)
	if err != nil {
		return nil, err
	}
	return &Scraper{page: page, sel: sel, base: base}, nil
}

// DiscoverLinks scrolls the sidebar until the set of conversation links
// stops growing and returns them de-duplicated by conversation id, first
// occurrence kept. An unlocatable sidebar yields nil, not an error.
func (s *Scraper) DiscoverLinks(ctx context.Context) []Link {
	ctx, span := tracer.Start(ctx, "DiscoverLinks")
	defer span.End()

	s.revealSidebar(ctx)

	container, ok := s.firstExisting(ctx, s.sel.SidebarContainers)
	if !ok {
		slog.WarnContext(ctx, "no sidebar container matched")
		return nil
	}

	seen := 0
	stable := 0
	for pass := 0; pass < maxScrollPasses; pass++ {
		err := s.page.Evaluate(ctx, scrollContainerScript(container), nil)
		if err != nil {
			slog.WarnContext(ctx, "failed to scroll sidebar", "err", err)
			break
		}
		s.pause(ctx, scrollPause)

		var total int
		err = s.page.Evaluate(ctx, countMatchesScript(s.sel.ChatLinks), &total)
		if err != nil {
			slog.WarnContext(ctx, "failed to count sidebar links", "err", err)
			break
		}

		if total == seen {
			stable++
			if stable >= stablePassTarget {
				break
			}
		} else {
			stable = 0
			seen = total
		}
	}

	markup, err := s.page.OuterHTML(ctx, container)
	if err != nil {
		slog.WarnContext(ctx, "failed to capture sidebar markup", "err", err)
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		slog.WarnContext(ctx, "failed to parse sidebar markup", "err", err)
		return nil
	}

	var links []Link
	seenIds := map[string]bool{}
	for _, candidate := range s.sel.ChatLinks {
		for _, anchor := range htmlutil.GetAnchors(doc.Find(candidate), s.base) {
			if !strings.Contains(anchor.Href, "/c/") {
				continue
			}
			id := ConversationId(anchor.Href)
			if seenIds[id] {
				continue
			}
			seenIds[id] = true
			links = append(links, Link{Url: anchor.Href, Title: anchor.Name})
		}
	}

	span.SetAttributes(attribute.Int("links", len(links)))
	return links
}

// revealSidebar best-effort clicks the buttons known to expand a collapsed
// navigation panel.
func (s *Scraper) revealSidebar(ctx context.Context) {
	for _, label := range s.sel.SidebarButtons {
		selector := fmt.Sprintf(`button[aria-label=%s]`, strconv.Quote(label))

		exists := false
		err := s.page.Evaluate(ctx, existsScript(selector), &exists)
		if err != nil || !exists {
			continue
		}

		err = s.page.Click(ctx, selector)
		if err != nil {
			slog.DebugContext(ctx, "sidebar button click failed", "label", label, "err", err)
			continue
		}
		s.pause(ctx, time.Millisecond*400)
	}
}

func (s *Scraper) firstExisting(ctx context.Context, candidates []string) (string, bool) {
	for _, candidate := range candidates {
		exists := false
		err := s.page.Evaluate(ctx, existsScript(candidate), &exists)
		if err == nil && exists {
			return candidate, true
		}
	}
	return "", false
}

// pause sleeps for the base duration plus a little random jitter, bailing
// early if the context ends.
func (s *Scraper) pause(ctx context.Context, base time.Duration) {
	jitter, err := random.IntRange(0, maxJitterMs)
	if err != nil {
		jitter = 0
	}

	timer := time.NewTimer(base + time.Duration(jitter)*time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ConversationId extracts the service-assigned id from a conversation url:
// the trailing path segment. This assumes the id never moves into a query
// parameter.
func ConversationId(link string) string {
	link = strings.TrimSuffix(link, "/")
	if i := strings.LastIndexByte(link, '/'); i >= 0 {
		return link[i+1:]
	}
	return link
}

func existsScript(selector string) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, strconv.Quote(selector))
}

func scrollContainerScript(selector string) string {
	return fmt.Sprintf(
		`(() => { const el = document.querySelector(%s); if (el) { el.scrollTop = el.scrollHeight; } })()`,
		strconv.Quote(selector),
	)
}

func countMatchesScript(selectors []string) string {
	quoted := make([]string, len(selectors))
	for i, sel := range selectors {
		quoted[i] = strconv.Quote(sel)
	}
	return fmt.Sprintf(
		`[%s].reduce((total, sel) => total + document.querySelectorAll(sel).length, 0)`,
		strings.Join(quoted, ", "),
	)
}

// Package export orchestrates one full export run: bootstrap the browser
// session, list and fetch conversations over the private API, fall back to
// DOM scraping when the API path yields nothing, and write the document.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatexport/lib/browser"
	"chatexport/lib/scrapers/chatgpt"
	"chatexport/lib/scrapers/chatgpt/api"
	"chatexport/lib/scrapers/chatgpt/dom"
	"chatexport/services/export/archive"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/export")

// SourceTag identifies the exporter in the output document.
const SourceTag = "chat.openai.com (API-first exporter)"

const (
	// elements whose visibility marks an authenticated app shell
	appShellSelector = `main, nav, aside, [data-testid="sidebar"]`
	// the quick check, and the long "wait for the human to log in" bound
	loginWaitShort = time.Second * 20
	loginWaitLong  = time.Minute * 3

	// settle time after navigating to a conversation page
	postNavigatePause = time.Second
)

type Config struct {
	Profile browser.ProfileOptions `json:"profile"`
	// Headless is off by default so a human can complete the login.
	Headless bool `json:"headless"`
	// BaseUrl is the service origin, e.g. https://chat.openai.com
	BaseUrl string `json:"base_url"`
	// Output is the path the export document is written to
	Output   string `json:"output"`
	PageSize int    `json:"page_size"`
	// ArchiveDb optionally points at a sqlite file collecting the raw
	// detail payloads of the run
	ArchiveDb string `json:"archive_db"`
}

func (c Config) WithDefaults() Config {
	if c.BaseUrl == "" {
		c.BaseUrl = "https://chat.openai.com"
	}
	if c.Output == "" {
		c.Output = "chatgpt_export.json"
	}
	if c.PageSize <= 0 {
		c.PageSize = api.DefaultPageSize
	}
	return c
}

// DirectRunnerFactory builds the secondary API runner once the session is
// authenticated, typically from the browser's cookies.
type DirectRunnerFactory func(ctx context.Context) (api.Runner, error)

type Options struct {
	Page browser.Page
	// DirectRunner may be nil, in which case the in-page API path is the
	// only API tier.
	DirectRunner DirectRunnerFactory
	// Archive may be nil to disable raw payload archiving.
	Archive *archive.Archive
	// Selectors override the DOM fallback probes; nil means defaults.
	Selectors *dom.Selectors
	Config    Config
}

type Service struct {
	page      browser.Page
	newDirect DirectRunnerFactory
	archive   *archive.Archive
	selectors dom.Selectors
	cfg       Config
}

func NewService(opts Options) Service {
	selectors := dom.DefaultSelectors()
	if opts.Selectors != nil {
		selectors = *opts.Selectors
	}
	return Service{
		page:      opts.Page,
		newDirect: opts.DirectRunner,
		archive:   opts.Archive,
		selectors: selectors,
		cfg:       opts.Config.WithDefaults(),
	}
}

// Run performs one export end to end and returns the document to write.
// Per-item failures degrade that item; the only error Run can return is
// never reaching an authenticated app shell.
func (s Service) Run(ctx context.Context) (Document, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	err := s.ensureLoggedIn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bootstrap failed")
		return Document{}, err
	}

	conversations := s.exportViaApi(ctx)
	if len(conversations) == 0 {
		slog.InfoContext(ctx, "api path yielded nothing, falling back to dom scraping")
		conversations = s.exportViaDom(ctx)
	}

	span.SetAttributes(attribute.Int("conversations", len(conversations)))
	return Document{
		ExportedAt:    time.Now().Unix(),
		Source:        SourceTag,
		Conversations: conversations,
	}, nil
}

func (s Service) ensureLoggedIn(ctx context.Context) error {
	err := s.page.Navigate(ctx, s.cfg.BaseUrl)
	if err != nil {
		return err
	}

	err = s.page.WaitVisible(ctx, appShellSelector, loginWaitShort)
	if err == nil {
		return nil
	}

	slog.InfoContext(ctx, "log in if needed, waiting for the app shell to load", "timeout", loginWaitLong)
	err = s.page.WaitVisible(ctx, appShellSelector, loginWaitLong)
	if err != nil {
		return fmt.Errorf("never reached an authenticated app shell: %w", err)
	}
	return nil
}

func (s Service) exportViaApi(ctx context.Context) []chatgpt.Conversation {
	ctx, span := tracer.Start(ctx, "exportViaApi")
	defer span.End()

	runner := api.Runner(api.PageRunner{Page: s.page})
	entries := api.List(ctx, runner, s.cfg.PageSize)

	if len(entries) == 0 && s.newDirect != nil {
		direct, err := s.newDirect(ctx)
		if err != nil {
			slog.WarnContext(ctx, "failed to build direct api client", "err", err)
		} else {
			slog.InfoContext(ctx, "in-page listing came up empty, retrying over direct http")
			entries = api.List(ctx, direct, s.cfg.PageSize)
			if len(entries) > 0 {
				runner = direct
			}
		}
	}
	slog.InfoContext(ctx, "api listing finished", "count", len(entries))

	conversations := []chatgpt.Conversation{}
	for i, entry := range entries {
		id := entry.Key()
		if id == "" {
			slog.WarnContext(ctx, "skipping listing entry without an id", "title", entry.Title)
			continue
		}
		slog.InfoContext(
			ctx, "fetching conversation",
			"progress", fmt.Sprintf("%d/%d", i+1, len(entries)),
			"id", id,
		)
		conversations = append(conversations, s.fetchOne(ctx, runner, id, entry.Title))
	}
	return conversations
}

func (s Service) fetchOne(ctx context.Context, runner api.Runner, id, listedTitle string) chatgpt.Conversation {
	raw, body, ok := api.Fetch(ctx, runner, id)
	if !ok {
		slog.WarnContext(ctx, "detail fetch failed, keeping header-only record", "id", id)
		return chatgpt.Conversation{
			Id:       id,
			Url:      s.conversationUrl(id),
			Title:    headerTitle(listedTitle),
			Messages: []chatgpt.Message{},
		}
	}

	s.archivePayload(ctx, id, body)

	conv := chatgpt.Normalize(raw)
	if conv.Id == "" {
		// the payload carried no id in either known field, fall back to
		// the one we listed it under
		conv.Id = id
	}
	conv.Url = s.conversationUrl(conv.Id)
	return conv
}

func (s Service) archivePayload(ctx context.Context, id string, payload []byte) {
	if s.archive == nil {
		return
	}
	err := s.archive.NotePayload(ctx, id, time.Now().Unix(), payload)
	if err != nil {
		slog.WarnContext(ctx, "failed to archive raw payload", "id", id, "err", err)
	}
}

func (s Service) exportViaDom(ctx context.Context) []chatgpt.Conversation {
	ctx, span := tracer.Start(ctx, "exportViaDom")
	defer span.End()

	conversations := []chatgpt.Conversation{}

	err := s.page.Navigate(ctx, s.cfg.BaseUrl)
	if err != nil {
		slog.WarnContext(ctx, "failed to navigate back to the app", "err", err)
		return conversations
	}

	scraper, err := dom.NewScraper(s.page, s.cfg.BaseUrl, s.selectors)
	if err != nil {
		slog.WarnContext(ctx, "failed to set up dom scraper", "err", err)
		return conversations
	}

	links := scraper.DiscoverLinks(ctx)
	slog.InfoContext(ctx, "discovered conversation links in sidebar", "count", len(links))

	for i, link := range links {
		id := dom.ConversationId(link.Url)
		slog.InfoContext(
			ctx, "opening conversation",
			"progress", fmt.Sprintf("%d/%d", i+1, len(links)),
			"id", id,
		)

		err := s.page.Navigate(ctx, link.Url)
		if err != nil {
			slog.WarnContext(ctx, "failed to open conversation, keeping header-only record", "id", id, "err", err)
			conversations = append(conversations, chatgpt.Conversation{
				Id:       id,
				Url:      link.Url,
				Title:    headerTitle(link.Title),
				Messages: []chatgpt.Message{},
			})
			continue
		}
		sleepCtx(ctx, postNavigatePause)

		title, messages := scraper.ScrapeConversation(ctx, link.Title)
		if messages == nil {
			messages = []chatgpt.Message{}
		}
		conversations = append(conversations, chatgpt.Conversation{
			Id:       id,
			Url:      link.Url,
			Title:    title,
			Messages: messages,
		})
	}
	return conversations
}

func (s Service) conversationUrl(id string) string {
	return strings.TrimSuffix(s.cfg.BaseUrl, "/") + "/c/" + id
}

func headerTitle(listed string) string {
	if listed != "" {
		return listed
	}
	return chatgpt.DefaultTitle
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

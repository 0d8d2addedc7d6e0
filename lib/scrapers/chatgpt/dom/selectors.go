package dom

// Selectors is the ordered list of capability probes the fallback scraper
// works through, first match wins. They are data rather than branching so
// a UI rollout only means editing a list.
type Selectors struct {
	// button labels that may reveal a collapsed sidebar
	SidebarButtons []string
	// candidates for the sidebar container holding conversation links
	SidebarContainers []string
	// candidates for conversation link elements, across rollouts
	ChatLinks []string
	// candidates for the title of an open conversation page
	TitleCandidates []string
	// candidates for message-turn elements
	TurnCandidates []string
	// attribute carrying the author role of a turn
	RoleAttr string
	// candidates for the content element within a turn
	ContentCandidates []string
}

// the generic block element scanned when no turn candidate matches at all
const fallbackTurnSelector = "article"

func DefaultSelectors() Selectors {
	return Selectors{
		SidebarButtons: []string{
			"Open sidebar",
			"History",
			"Show sidebar",
		},
		SidebarContainers: []string{
			`[data-testid="sidebar"]`,
			`nav[role="navigation"]`,
			`aside`,
		},
		ChatLinks: []string{
			`[data-testid="conversation-link"]`,
			`a[href^="/c/"]`,
			`a[href*="/c/"]`,
			`a[data-radix-collection-item][href*="/c/"]`,
		},
		TitleCandidates: []string{
			`[data-testid="conversation-title"]`,
			`header h1`,
			`header h2`,
		},
		TurnCandidates: []string{
			`[data-message-author-role]`,
			`[data-testid="conversation-turn"]`,
		},
		RoleAttr: "data-message-author-role",
		ContentCandidates: []string{
			`[data-message-content]`,
			`.markdown`,
			`[data-testid="model-viewer"]`,
			`article`,
		},
	}
}

// Package chatgpt models conversations pulled out of the chat service and
// normalizes the service's heterogeneous detail payloads into one canonical
// record shape.
package chatgpt

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// DefaultTitle is used whenever the service reports no title at all.
const DefaultTitle = "Untitled"

type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
	// Html is only populated by the DOM fallback path; the API path has no
	// rendered markup to offer.
	Html string `json:"html,omitempty"`
}

type Conversation struct {
	Id       string    `json:"id"`
	Url      string    `json:"url"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

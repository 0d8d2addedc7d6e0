package chatgpt

import (
	"encoding/json"
	"slices"
	"strings"
)

// RawConversation is the transient shape of a detail payload. Only the
// fields the normalizer consumes are decoded; everything else is dropped.
// A bare list entry decodes into this too, it just carries no mapping.
type RawConversation struct {
	Id             string             `json:"id"`
	ConversationId string             `json:"conversation_id"`
	Title          string             `json:"title"`
	CurrentNode    string             `json:"current_node"`
	Mapping        map[string]RawNode `json:"mapping"`
}

// RawNode is one entry of the chat-tree mapping. Root and tombstone nodes
// have a null message.
type RawNode struct {
	Message *RawNodeMessage `json:"message"`
}

type RawNodeMessage struct {
	Author     RawAuthor       `json:"author"`
	CreateTime float64         `json:"create_time"`
	Content    json.RawMessage `json:"content"`
}

type RawAuthor struct {
	Role string `json:"role"`
}

// Normalize converts one raw detail payload into a canonical conversation.
// It is pure and total: malformed or missing fields degrade to documented
// defaults, never to an error.
//
// Messages are ordered by the message creation timestamp, where a missing
// timestamp sorts as zero. Nodes are visited in sorted key order so that
// timestamp ties resolve the same way on every run.
func Normalize(raw RawConversation) Conversation {
	id := raw.Id
	if id == "" {
		id = raw.ConversationId
	}

	title := raw.Title
	if title == "" {
		title = raw.CurrentNode
	}
	if title == "" {
		title = DefaultTitle
	}

	messages := []Message{}
	if len(raw.Mapping) > 0 {
		keys := make([]string, 0, len(raw.Mapping))
		for key := range raw.Mapping {
			keys = append(keys, key)
		}
		slices.Sort(keys)

		nodes := make([]*RawNodeMessage, 0, len(keys))
		for _, key := range keys {
			nodes = append(nodes, raw.Mapping[key].Message)
		}
		slices.SortStableFunc(nodes, func(a, b *RawNodeMessage) int {
			at, bt := createTime(a), createTime(b)
			if at < bt {
				return -1
			}
			if at > bt {
				return 1
			}
			return 0
		})

		for _, node := range nodes {
			messages = append(messages, nodeMessage(node))
		}
	}

	return Conversation{
		Id:       id,
		Title:    title,
		Messages: messages,
	}
}

func createTime(m *RawNodeMessage) float64 {
	if m == nil {
		return 0
	}
	return m.CreateTime
}

func nodeMessage(m *RawNodeMessage) Message {
	if m == nil {
		return Message{Role: RoleAssistant, Text: ""}
	}
	role := m.Author.Role
	if role == "" {
		role = RoleAssistant
	}
	return Message{
		Role: role,
		Text: ContentText(m.Content),
	}
}

// ContentText extracts the message text out of a content value of any of
// the known shapes, in priority order:
//
//  1. an object with a `parts` list: string parts and the `text` field of
//     object parts are joined with newlines
//  2. an object with a plain `text` string
//  3. a bare string
//
// Anything else yields the empty string.
func ContentText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var obj struct {
		Parts []json.RawMessage `json:"parts"`
		Text  *string           `json:"text"`
	}
	if err := json.Unmarshal(content, &obj); err == nil {
		if len(obj.Parts) > 0 {
			chunks := make([]string, 0, len(obj.Parts))
			for _, part := range obj.Parts {
				var s string
				if err := json.Unmarshal(part, &s); err == nil {
					chunks = append(chunks, s)
					continue
				}
				var embedded struct {
					Text *string `json:"text"`
				}
				if err := json.Unmarshal(part, &embedded); err == nil && embedded.Text != nil {
					chunks = append(chunks, *embedded.Text)
				}
			}
			return strings.TrimSpace(strings.Join(chunks, "\n"))
		}
		if obj.Text != nil {
			return strings.TrimSpace(*obj.Text)
		}
		return ""
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}

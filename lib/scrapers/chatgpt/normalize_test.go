package chatgpt

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestContentText(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "parts with string and object",
			content:  `{"parts": ["a", {"text": "b"}]}`,
			expected: "a\nb",
		},
		{
			name:     "plain text field",
			content:  `{"text": "x"}`,
			expected: "x",
		},
		{
			name:     "bare string",
			content:  `"y"`,
			expected: "y",
		},
		{
			name:     "none of the above",
			content:  `{}`,
			expected: "",
		},
		{
			name:     "empty parts falls through to text",
			content:  `{"parts": [], "text": "fallback"}`,
			expected: "fallback",
		},
		{
			name:     "object part without text skipped",
			content:  `{"parts": ["a", {"kind": "image"}, "b"]}`,
			expected: "a\nb",
		},
		{
			name:     "whitespace trimmed",
			content:  `{"text": "  x \n"}`,
			expected: "x",
		},
		{
			name:     "unknown scalar",
			content:  `42`,
			expected: "",
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, ContentText(json.RawMessage(test.content)))
		})
	}
}

func TestNormalizeOrdersByCreateTime(t *testing.T) {
	var raw RawConversation
	err := json.Unmarshal([]byte(`{
		"id": "c1",
		"title": "Hello",
		"mapping": {
			"n2": {"message": {"author": {"role": "assistant"}, "create_time": 2, "content": {"parts": ["Hello!"]}}},
			"n1": {"message": {"author": {"role": "user"}, "create_time": 1, "content": {"parts": ["Hi"]}}}
		}
	}`), &raw)
	require.NoError(t, err)

	conv := Normalize(raw)

	expected := Conversation{
		Id:    "c1",
		Title: "Hello",
		Messages: []Message{
			{Role: "user", Text: "Hi"},
			{Role: "assistant", Text: "Hello!"},
		},
	}
	if diff := cmp.Diff(expected, conv); diff != "" {
		t.Fatalf("normalized conversation mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeMissingCreateTimeSortsFirst(t *testing.T) {
	raw := RawConversation{
		Id: "c1",
		Mapping: map[string]RawNode{
			"b": {Message: &RawNodeMessage{
				Author:     RawAuthor{Role: "assistant"},
				CreateTime: 5,
				Content:    json.RawMessage(`"later"`),
			}},
			"a": {Message: &RawNodeMessage{
				Author:  RawAuthor{Role: "system"},
				Content: json.RawMessage(`"first"`),
			}},
		},
	}

	conv := Normalize(raw)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, "first", conv.Messages[0].Text)
	require.Equal(t, "later", conv.Messages[1].Text)
}

func TestNormalizeWithoutMapping(t *testing.T) {
	conv := Normalize(RawConversation{ConversationId: "c9", Title: "listed only"})
	require.Equal(t, "c9", conv.Id)
	require.Equal(t, "listed only", conv.Title)
	require.NotNil(t, conv.Messages)
	require.Empty(t, conv.Messages)
}

func TestNormalizeTitleFallbacks(t *testing.T) {
	require.Equal(t, "node-3", Normalize(RawConversation{Id: "c", CurrentNode: "node-3"}).Title)
	require.Equal(t, DefaultTitle, Normalize(RawConversation{Id: "c"}).Title)
}

func TestNormalizeDefaultsRole(t *testing.T) {
	raw := RawConversation{
		Id: "c1",
		Mapping: map[string]RawNode{
			"root": {},
			"n1": {Message: &RawNodeMessage{
				CreateTime: 1,
				Content:    json.RawMessage(`{"text": "hi"}`),
			}},
		},
	}

	conv := Normalize(raw)
	require.Len(t, conv.Messages, 2)
	for _, msg := range conv.Messages {
		require.Equal(t, RoleAssistant, msg.Role)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := RawConversation{
		Id:    "c1",
		Title: "t",
		Mapping: map[string]RawNode{
			"a": {Message: &RawNodeMessage{Author: RawAuthor{Role: "user"}, Content: json.RawMessage(`"x"`)}},
			"b": {Message: &RawNodeMessage{Author: RawAuthor{Role: "assistant"}, Content: json.RawMessage(`"y"`)}},
			"c": {Message: &RawNodeMessage{Author: RawAuthor{Role: "user"}, Content: json.RawMessage(`"z"`)}},
		},
	}

	first := Normalize(raw)
	second := Normalize(raw)
	require.Equal(t, first, second)
}

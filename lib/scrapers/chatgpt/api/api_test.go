package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRunner maps request paths (matched by prefix before the query) to
// canned bodies or errors, recording every path it sees.
type fakeRunner struct {
	responses map[string]string
	errors    map[string]error
	requested []string
}

func (f *fakeRunner) FetchJSON(ctx context.Context, path string) (json.RawMessage, error) {
	f.requested = append(f.requested, path)

	key := path
	if i := strings.IndexByte(path, '?'); i >= 0 {
		key = path[:i] + "?" + queryKey(path[i+1:])
	}
	if err, ok := f.errors[key]; ok {
		return nil, err
	}
	if body, ok := f.responses[key]; ok {
		return json.RawMessage(body), nil
	}
	return nil, fmt.Errorf("no canned response for %s", key)
}

// queryKey keeps only the offset parameter so tests can key pages by it.
func queryKey(query string) string {
	for _, kv := range strings.Split(query, "&") {
		if strings.HasPrefix(kv, "offset=") {
			return kv
		}
	}
	return ""
}

func TestListPagesUntilHasMoreFalse(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"/backend-api/conversations?offset=0": `{"items": [{"id": "a"}], "has_more": true, "limit": 1}`,
		"/backend-api/conversations?offset=1": `{"items": [{"id": "b"}], "has_more": true, "limit": 1}`,
		"/backend-api/conversations?offset=2": `{"items": [{"id": "c"}], "has_more": false, "limit": 1}`,
	}}

	entries := List(context.Background(), runner, 1)
	require.Len(t, entries, 3)
	require.Equal(t, "a", entries[0].Key())
	require.Equal(t, "b", entries[1].Key())
	require.Equal(t, "c", entries[2].Key())
}

func TestListAcceptsLegacyShape(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"/backend-api/conversations?offset=0": `{"conversations": [{"conversation_id": "x", "title": "t"}], "has_more": false}`,
	}}

	entries := List(context.Background(), runner, 50)
	require.Len(t, entries, 1)
	require.Equal(t, "x", entries[0].Key())
	require.Equal(t, "t", entries[0].Title)
}

func TestListStopsOnUnknownShape(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"/backend-api/conversations?offset=0":  `{"items": [{"id": "a"}], "has_more": true, "limit": 50}`,
		"/backend-api/conversations?offset=50": `{"detail": "maintenance"}`,
	}}

	entries := List(context.Background(), runner, 50)
	require.Len(t, entries, 1)
	require.Equal(t, "a", entries[0].Key())
}

func TestListFallsBackToSecondEndpoint(t *testing.T) {
	runner := &fakeRunner{
		errors: map[string]error{
			"/backend-api/conversations?offset=0": fmt.Errorf("404"),
		},
		responses: map[string]string{
			"/api/conversations?offset=0": `{"items": [{"id": "a"}], "has_more": false}`,
		},
	}

	entries := List(context.Background(), runner, 50)
	require.Len(t, entries, 1)
}

func TestListTotalFailureIsEmptyNotFatal(t *testing.T) {
	runner := &fakeRunner{}
	entries := List(context.Background(), runner, 50)
	require.Empty(t, entries)
}

func TestListDefaultsPageSize(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"/backend-api/conversations?offset=0": `{"items": [], "has_more": false}`,
	}}

	List(context.Background(), runner, 0)
	require.Contains(t, runner.requested[0], "limit=50")
}

func TestFetchFirstVariantWins(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{
		"/backend-api/conversation/c1": `{"id": "c1", "title": "hello"}`,
	}}

	raw, body, ok := Fetch(context.Background(), runner, "c1")
	require.True(t, ok)
	require.Equal(t, "c1", raw.Id)
	require.JSONEq(t, `{"id": "c1", "title": "hello"}`, string(body))
	require.Len(t, runner.requested, 1)
}

func TestFetchFallsBackThenAbsent(t *testing.T) {
	runner := &fakeRunner{
		errors: map[string]error{
			"/backend-api/conversation/c1": fmt.Errorf("502"),
		},
		responses: map[string]string{
			"/api/conversation/c1": `{"conversation_id": "c1"}`,
		},
	}

	raw, _, ok := Fetch(context.Background(), runner, "c1")
	require.True(t, ok)
	require.Equal(t, "c1", raw.ConversationId)

	_, _, ok = Fetch(context.Background(), &fakeRunner{}, "missing")
	require.False(t, ok)
}

package twitch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipcast/backend/internal/logging"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:     srv.URL,
		ClientID:    "test-client",
		EmbedParent: "localhost",
	}, logging.NewNop())
}

func TestCheckLiveStates(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
		want State
	}{
		{"live", `{"data":[{"user_login":"alice","type":"live"}]}`, http.StatusOK, StateLive},
		{"offline", `{"data":[]}`, http.StatusOK, StateOffline},
		{"upstream error", `{"error":"Not Found"}`, http.StatusNotFound, StateUnknown},
		{"malformed body", `{"data":`, http.StatusOK, StateUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/helix/streams", r.URL.Path)
				assert.Equal(t, "test-client", r.Header.Get("Client-Id"))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))

			st := c.CheckLive(context.Background(), "alice")
			assert.Equal(t, tt.want, st.State)
		})
	}
}

func TestCheckLiveHandle(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"user_login":"alice","type":"live"}]}`))
	}))

	st := c.CheckLive(context.Background(), "alice")
	require.True(t, st.Live())
	assert.Contains(t, st.Handle, "player.twitch.tv")
	assert.Contains(t, st.Handle, "channel=alice")
	assert.Contains(t, st.Handle, "parent=localhost")
}

func TestChannels(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/helix/users":
			_, _ = w.Write([]byte(`{"data":[
				{"id":"1","login":"alice","display_name":"Alice","profile_image_url":"https://cdn/a.png"},
				{"id":"2","login":"bob","display_name":"Bob","profile_image_url":"https://cdn/b.png"}
			]}`))
		case "/helix/streams":
			_, _ = w.Write([]byte(`{"data":[{"user_login":"bob","type":"live"}]}`))
		case "/helix/channels/followers":
			if r.URL.Query().Get("broadcaster_id") == "1" {
				_, _ = w.Write([]byte(`{"total":1234}`))
			} else {
				http.NotFound(w, r)
			}
		default:
			http.NotFound(w, r)
		}
	}))

	channels, err := c.Channels(context.Background(), []string{"alice", "bob", "ghost"})
	require.NoError(t, err)
	require.Len(t, channels, 2)

	// Roster order preserved, unknown logins skipped.
	assert.Equal(t, "alice", channels[0].Login)
	assert.Equal(t, "Alice", channels[0].DisplayName)
	assert.Equal(t, 1234, channels[0].Followers)
	assert.False(t, channels[0].IsLive)

	// A follower query failure degrades to zero instead of failing the call.
	assert.Equal(t, "bob", channels[1].Login)
	assert.Equal(t, 0, channels[1].Followers)
	assert.True(t, channels[1].IsLive)
}

func TestChannelsEmptyRoster(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an empty roster")
	}))

	channels, err := c.Channels(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, channels)
}

func TestChannelsUpstreamFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.Channels(context.Background(), []string{"alice"})
	assert.Error(t, err)
}

func TestPageURL(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	assert.Equal(t, "https://www.twitch.tv/alice", c.PageURL("alice"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "live", StateLive.String())
	assert.Equal(t, "offline", StateOffline.String())
	assert.Equal(t, "unknown", StateUnknown.String())
}

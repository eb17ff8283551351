package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// splitHandler writes body in the given pieces, flushing after each one so
// the client sees them as separate reads.
func splitHandler(pieces ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, p := range pieces {
			_, _ = io.WriteString(w, p)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func newTestClient(t *testing.T, h http.Handler, tokens api.TokenSource) *api.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return api.New(srv.URL, tokens)
}

func collect(t *testing.T, c *api.Client, endpoint string) ([]string, error) {
	t.Helper()
	var chunks []string
	err := c.Stream(context.Background(), endpoint, api.Params{Language: "go"}, func(s string) {
		chunks = append(chunks, s)
	})
	return chunks, err
}

func TestStream_HelloWorld(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, splitHandler(
		`data: {"chunk":"Hello"}`+"\n",
		`data: {"chunk":" World"}`+"\n",
	), nil)

	chunks, err := collect(t, c, "/stream/explain")

	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " World"}, chunks)
}

func TestStream_SplitBoundariesDoNotChangeChunks(t *testing.T) {
	t.Parallel()
	body := "data: {\"chunk\":\"\"}\n\n" +
		"data: {\"chunk\":\"fmt.Println\"}\n\n" +
		"data: {\"chunk\":\"(\\\"héllo 世界\\\")\"}\n\n" +
		"event: ping\n" +
		"data: {\"chunk\":\"\\n// done\"}\n\n"
	want := []string{"fmt.Println", "(\"héllo 世界\")", "\n// done"}

	splits := map[string][]string{
		"whole":        {body},
		"rune by rune": strings.Split(body, ""),
		"every 3":      chunkEvery(body, 3),
		"every 7":      chunkEvery(body, 7),
		"mid prefix":   {body[:2], body[2:40], body[40:]},
	}
	for name, pieces := range splits {
		pieces := pieces
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, splitHandler(pieces...), nil)
			chunks, err := collect(t, c, "/stream/explain")
			require.NoError(t, err)
			assert.Equal(t, want, chunks)
		})
	}
}

// chunkEvery cuts s into n-byte pieces, splitting multi-byte runes too.
func chunkEvery(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}

func TestStream_RecordSplitAcrossReads(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, splitHandler("dat", `a: {"chunk":"x"}`+"\n"), nil)

	chunks, err := collect(t, c, "/stream/debug")

	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, chunks)
}

func TestStream_FinalRecordWithoutNewline(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, splitHandler(`data: {"chunk":"a"}`+"\n", `data: {"chunk":"b"}`), nil)

	chunks, err := collect(t, c, "/stream/debug")

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, chunks)
}

func TestStream_CRLFLines(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, splitHandler("data: {\"chunk\":\"a\"}\r\n\r\ndata: {\"chunk\":\"b\"}\r\n"), nil)

	chunks, err := collect(t, c, "/stream/debug")

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, chunks)
}

func TestStream_MalformedLineSkipped(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, splitHandler(
		"data: {bad\n",
		": comment\n",
		"data: {\"other\":1}\n",
		"data: {\"chunk\":42}\n",
		"data: {\"chunk\":\"ok\"}\n",
	), nil)

	chunks, err := collect(t, c, "/stream/explain")

	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, chunks)
}

func TestStream_EmptyBodyDeliversNotice(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, splitHandler(), nil)

	chunks, err := collect(t, c, "/stream/explain")

	require.NoError(t, err)
	assert.Equal(t, []string{api.NoDataNotice}, chunks)
}

func TestStream_OnlyEmptyChunksDeliversNotice(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, splitHandler("data: {\"chunk\":\"\"}\n\n"), nil)

	chunks, err := collect(t, c, "/stream/explain")

	require.NoError(t, err)
	assert.Equal(t, []string{api.NoDataNotice}, chunks)
}

func TestStream_QuotaExhausted(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"quota_used":50,"quota_limit":50,"quota_remaining":0,"reset_at":"2026-10-17T00:00:00Z","is_exhausted":true,"message":"You have used all 50 queries today"}`)
	}), nil)

	chunks, err := collect(t, c, "/stream/explain")

	assert.Empty(t, chunks)
	var quotaErr *api.QuotaExhaustedError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 50, quotaErr.Info.Used)
	assert.Equal(t, 50, quotaErr.Info.Limit)
	assert.Equal(t, 0, quotaErr.Info.Remaining)
	assert.True(t, quotaErr.Info.Exhausted())
	assert.Equal(t, "2026-10-17T00:00:00Z", quotaErr.Info.ResetAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, "You have used all 50 queries today", err.Error())

	out := api.OutcomeOf(err)
	assert.Equal(t, api.OutcomeQuotaExhausted, out.Kind)
	require.NotNil(t, out.Quota)
	assert.Equal(t, 50, out.Quota.Limit)
}

func TestStream_QuotaExhaustedNonJSONBody(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}), nil)

	_, err := collect(t, c, "/stream/explain")

	var quotaErr *api.QuotaExhaustedError
	require.ErrorAs(t, err, &quotaErr)
	assert.True(t, quotaErr.Info.Exhausted())
	assert.Equal(t, "daily quota exhausted", err.Error())
}

func TestStream_ServerErrorIsProtocolFailure(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "LLM backend unavailable\ndata: {\"chunk\":\"never\"}\n")
	}), nil)

	chunks, err := collect(t, c, "/stream/explain")

	assert.Empty(t, chunks)
	var protoErr *api.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, http.StatusInternalServerError, protoErr.StatusCode)
	assert.Contains(t, protoErr.Body, "LLM backend unavailable")

	out := api.OutcomeOf(err)
	assert.Equal(t, api.OutcomeProtocolFailure, out.Kind)
	assert.Equal(t, 500, out.StatusCode)
	assert.Equal(t, protoErr.Body, out.Body)
}

func TestStream_ConnectionFailure(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := api.New("http://"+addr, nil)
	called := false
	err = c.Stream(context.Background(), "/stream/explain", api.Params{}, func(string) { called = true })

	assert.False(t, called)
	var connErr *api.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Contains(t, err.Error(), addr)
	assert.Contains(t, err.Error(), "reachable")

	var protoErr *api.ProtocolError
	assert.False(t, errors.As(err, &protoErr))
	assert.Equal(t, api.OutcomeConnectionFailure, api.OutcomeOf(err).Kind)
}

func TestStream_NoTokenSendsNoAuthorization(t *testing.T) {
	t.Parallel()
	var gotAuth, gotType string
	var hadAuth bool
	var body map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, hadAuth = r.Header["Authorization"]
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&body)
		splitHandler(`data: {"chunk":"hi"}`+"\n")(w, r)
	}), api.TokenFunc(func(context.Context) (string, error) { return "", nil }))

	chunks, err := collect(t, c, "/stream/explain")

	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, chunks)
	assert.False(t, hadAuth)
	assert.Empty(t, gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, map[string]string{"language": "go"}, body)
}

func TestStream_TokenSourceErrorIsUnauthenticated(t *testing.T) {
	t.Parallel()
	var hadAuth bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		splitHandler(`data: {"chunk":"hi"}`+"\n")(w, r)
	}), api.TokenFunc(func(context.Context) (string, error) { return "", fmt.Errorf("identity provider down") }))

	_, err := collect(t, c, "/stream/explain")

	require.NoError(t, err)
	assert.False(t, hadAuth)
}

func TestStream_BearerTokenAndRequestID(t *testing.T) {
	t.Parallel()
	var gotAuth, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotID = r.Header.Get("X-Request-ID")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/stream/review_code", r.URL.Path)
		splitHandler(`data: {"chunk":"ok"}`+"\n")(w, r)
	}))
	t.Cleanup(srv.Close)

	c := api.New(srv.URL+"/", api.TokenFunc(func(context.Context) (string, error) { return "secret", nil }),
		api.WithRequestIDs(func() string { return "req-1" }))
	_, err := collect(t, c, "/stream/review_code")

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "req-1", gotID)
	assert.Equal(t, srv.URL, c.BaseURL())
}

func TestStream_EmptyEndpoint(t *testing.T) {
	t.Parallel()
	c := api.New("http://127.0.0.1:1", nil)

	err := c.Stream(context.Background(), "", api.Params{}, func(string) {})

	assert.ErrorIs(t, err, api.ErrEmptyEndpoint)
	assert.Equal(t, api.OutcomeProtocolFailure, api.OutcomeOf(err).Kind)
}

func TestStream_ConcurrentCallsAreIndependent(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p api.Params
		_ = json.NewDecoder(r.Body).Decode(&p)
		splitHandler(
			fmt.Sprintf(`data: {"chunk":"%s-1"}`+"\n", p.Topic),
			fmt.Sprintf(`data: {"chunk":"%s-2"}`, p.Topic),
		)(w, r)
	}), nil)

	topics := []string{"a", "b", "c", "d", "e"}
	results := make(chan []string, len(topics))
	for _, topic := range topics {
		topic := topic
		go func() {
			var chunks []string
			err := c.Stream(context.Background(), "/stream/generate", api.Params{Topic: topic}, func(s string) {
				chunks = append(chunks, s)
			})
			assert.NoError(t, err)
			results <- chunks
		}()
	}
	for range topics {
		chunks := <-results
		require.Len(t, chunks, 2)
		prefix := strings.TrimSuffix(chunks[0], "-1")
		assert.Equal(t, []string{prefix + "-1", prefix + "-2"}, chunks)
	}
}

func TestStreamChan(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, splitHandler(`data: {"chunk":"Hello"}`+"\n", `data: {"chunk":" World"}`+"\n"), nil)

	ch := c.StreamChan(context.Background(), "/stream/explain", api.Params{})
	var deltas []api.StreamDelta
	for d := range ch {
		deltas = append(deltas, d)
	}

	require.Len(t, deltas, 3)
	assert.Equal(t, "Hello", deltas[0].Token)
	assert.Equal(t, " World", deltas[1].Token)
	assert.True(t, deltas[2].Done)
}

func TestStreamChan_Error(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}), nil)

	text, err := api.CollectStream(c.StreamChan(context.Background(), "/stream/explain", api.Params{}))

	assert.Empty(t, text)
	var protoErr *api.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, http.StatusBadRequest, protoErr.StatusCode)
}

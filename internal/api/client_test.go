package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticToken(tok string) api.TokenSource {
	return api.TokenFunc(func(context.Context) (string, error) { return tok, nil })
}

func TestComplete(t *testing.T) {
	t.Parallel()
	var captured map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/debug", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"response":"  Off-by-one on line 3.\n"}`)
	}), staticToken("tok"))

	op, ok := api.LookupOperation("debug")
	require.True(t, ok)
	text, err := c.CompleteOperation(context.Background(), op, api.Params{Language: "python", Code: "for i in range(10): print(i+1)"})

	require.NoError(t, err)
	assert.Equal(t, "Off-by-one on line 3.", text)
	assert.Equal(t, map[string]string{"language": "python", "code": "for i in range(10): print(i+1)"}, captured)
}

func TestComplete_QuotaExhausted(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"quota_used":10,"quota_limit":10,"quota_remaining":0,"reset_at":"2026-10-17T00:00:00","is_exhausted":true}`)
	}), nil)

	_, err := c.Complete(context.Background(), "/explain", api.Params{})

	var quotaErr *api.QuotaExhaustedError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), quotaErr.Info.ResetAt.Time)
}

func TestQuotaStatus(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/quota/status", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"success":true,"quota_used":3,"quota_limit":50,"quota_remaining":47,"reset_at":"2026-10-17T00:00:00.123456","is_exhausted":false}`)
	}), staticToken("tok"))

	info, err := c.QuotaStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, info.Used)
	assert.Equal(t, 47, info.Remaining)
	assert.True(t, info.Consistent())
	assert.False(t, info.Exhausted())
	assert.Equal(t, 2026, info.ResetAt.Year())
}

func TestQuotaStatus_RequiresToken(t *testing.T) {
	t.Parallel()
	called := false
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), nil)

	_, err := c.QuotaStatus(context.Background())

	assert.ErrorIs(t, err, api.ErrNotAuthenticated)
	assert.False(t, called)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"ok","message":"Backend is healthy"}`)
	}), nil)

	hs, err := c.Health(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ok", hs.Status)
}

func TestExecuteCode(t *testing.T) {
	t.Parallel()
	var got api.ExecuteRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execute_code", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"success":true,"output":"3\n","language":"python","exit_code":0,"version":"3.10.0"}`)
	}), nil)

	res, err := c.ExecuteCode(context.Background(), api.ExecuteRequest{Code: "print(1+2)", Language: "python"})

	require.NoError(t, err)
	assert.Equal(t, "*", got.Version)
	assert.True(t, res.Success)
	assert.Equal(t, "3\n", res.Output)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
}

func TestOperations_PathsAndValidation(t *testing.T) {
	t.Parallel()
	op, ok := api.LookupOperation("refactor")
	require.True(t, ok)
	assert.Equal(t, "/stream/refactor_code", op.StreamPath())
	assert.Equal(t, "/refactor_code", op.CompletePath())

	err := op.Validate(api.Params{Code: "x", Language: "go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refactor_type")

	assert.NoError(t, op.Validate(api.Params{Code: "x", Language: "go", RefactorType: "readability"}))

	byPath, ok := api.LookupOperation("convert_logic")
	require.True(t, ok)
	assert.Equal(t, "convert", byPath.Name)

	_, ok = api.LookupOperation("nope")
	assert.False(t, ok)
}

func TestStreamOperation_ValidatesBeforeRequest(t *testing.T) {
	t.Parallel()
	called := false
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), nil)
	op, _ := api.LookupOperation("tests")

	err := c.StreamOperation(context.Background(), op, api.Params{Code: "x"}, func(string) {})

	require.Error(t, err)
	assert.False(t, called)
}

func TestOutcomeOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, api.OutcomeCompleted, api.OutcomeOf(nil).Kind)

	wrapped := errors.Join(errors.New("context"), &api.ProtocolError{StatusCode: 502, Status: "502 Bad Gateway"})
	out := api.OutcomeOf(wrapped)
	assert.Equal(t, api.OutcomeProtocolFailure, out.Kind)
	assert.Equal(t, 502, out.StatusCode)

	assert.Equal(t, "quota_exhausted", api.OutcomeQuotaExhausted.String())
	assert.Equal(t, "connection_failure", api.OutcomeConnectionFailure.String())
}

func TestQuotaInfo_Exhausted(t *testing.T) {
	t.Parallel()
	assert.True(t, api.QuotaInfo{Limit: 5, Used: 5, Remaining: 0}.Exhausted())
	assert.True(t, api.QuotaInfo{IsExhausted: true}.Exhausted())
	assert.False(t, api.QuotaInfo{Limit: 5, Used: 1, Remaining: 4}.Exhausted())
	assert.False(t, api.QuotaInfo{Limit: 5, Used: 1, Remaining: 3}.Consistent())
}

func TestTimestamp_RoundTrip(t *testing.T) {
	t.Parallel()
	var info api.QuotaInfo
	require.NoError(t, json.Unmarshal([]byte(`{"reset_at":"2026-10-17T08:30:00+02:00"}`), &info))
	assert.Equal(t, time.Date(2026, 10, 17, 6, 30, 0, 0, time.UTC), info.ResetAt.UTC())

	data, err := json.Marshal(info)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reset_at":"2026-10-17T06:30:00Z"`)

	err = json.Unmarshal([]byte(`{"reset_at":"tomorrow"}`), &info)
	assert.Error(t, err)
}

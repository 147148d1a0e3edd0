package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVLLM_StreamingCumulativeChunks(t *testing.T) {
	var gotPayload generatePayload
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		assert.Equal(t, "/generate", r.URL.Path)

		flusher := w.(http.Flusher)
		for i, text := range []string{"A", "A B", "A B C"} {
			if i > 0 {
				time.Sleep(30 * time.Millisecond)
			}
			chunk, _ := json.Marshal(map[string]any{"text": []string{text}})
			w.Write(chunk)
			w.Write([]byte{0})
			flusher.Flush()
		}
	}))
	defer srv.Close()

	caller, err := New(NameVLLM, Options{
		Endpoint:    srv.URL,
		Temperature: 1.0,
		TopP:        0.9,
		IgnoreEOS:   true,
		Stream:      true,
	})
	require.NoError(t, err)
	assert.True(t, caller.EchoesPrompt())

	res, err := caller.Call(context.Background(), "hello world", 64)
	require.NoError(t, err)

	// Cumulative chunks: only the final text survives, with one timing
	// entry per chunk.
	assert.Equal(t, "A B C", res.Output)
	require.Len(t, res.TokenGenTime, 3)
	// Deltas are measured chunk-to-chunk, not from request start.
	assert.GreaterOrEqual(t, res.TokenGenTime[1], 0.03)
	assert.GreaterOrEqual(t, res.TokenGenTime[2], 0.03)
	assert.Equal(t, "hello world", res.Prompt)
	assert.False(t, res.EndTime.Before(res.StartTime))

	assert.Equal(t, "hello world", gotPayload.Prompt)
	assert.Equal(t, 1, gotPayload.N)
	assert.False(t, gotPayload.UseBeamSearch)
	assert.Equal(t, 1.0, gotPayload.Temperature)
	assert.Equal(t, 0.9, gotPayload.TopP)
	assert.Equal(t, 64, gotPayload.MaxTokens)
	assert.True(t, gotPayload.IgnoreEOS)
	assert.True(t, gotPayload.Stream)

	assert.Equal(t, "Benchmark Client", gotHeaders.Get("User-Agent"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "text/event-stream", gotHeaders.Get("Accept"))
}

func TestVLLM_StreamingScalarTextField(t *testing.T) {
	// Some backend versions send text as a plain string instead of a
	// singleton array.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": "scalar form"}`))
		w.Write([]byte{0})
	}))
	defer srv.Close()

	caller, err := New(NameVLLM, Options{Endpoint: srv.URL, Stream: true})
	require.NoError(t, err)

	res, err := caller.Call(context.Background(), "p", 8)
	require.NoError(t, err)
	assert.Equal(t, "scalar form", res.Output)
	assert.Len(t, res.TokenGenTime, 1)
}

func TestVLLM_NonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"text": []string{"full response"}})
	}))
	defer srv.Close()

	caller, err := New(NameVLLM, Options{Endpoint: srv.URL, Stream: false})
	require.NoError(t, err)

	res, err := caller.Call(context.Background(), "p", 8)
	require.NoError(t, err)
	assert.Equal(t, "full response", res.Output)
	assert.Empty(t, res.TokenGenTime)
}

func TestVLLM_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	caller, err := New(NameVLLM, Options{Endpoint: srv.URL, Stream: true})
	require.NoError(t, err)

	_, err = caller.Call(context.Background(), "p", 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestVLLM_MalformedChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": {"bad": "shape"}}`))
		w.Write([]byte{0})
	}))
	defer srv.Close()

	caller, err := New(NameVLLM, Options{Endpoint: srv.URL, Stream: true})
	require.NoError(t, err)

	_, err = caller.Call(context.Background(), "p", 8)
	assert.Error(t, err)
}

func TestSplitNUL(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		atEOF   bool
		advance int
		token   string
	}{
		{"delimited", "abc\x00rest", false, 4, "abc"},
		{"no delimiter midstream", "abc", false, 0, ""},
		{"trailing fragment at EOF", "abc", true, 3, "abc"},
		{"empty at EOF", "", true, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advance, token, err := splitNUL([]byte(tt.data), tt.atEOF)
			require.NoError(t, err)
			assert.Equal(t, tt.advance, advance)
			assert.Equal(t, tt.token, string(token))
		})
	}
}

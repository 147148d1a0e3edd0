package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// generatePayload is the request body for the /generate endpoint.
type generatePayload struct {
	Prompt        string  `json:"prompt"`
	N             int     `json:"n"`
	UseBeamSearch bool    `json:"use_beam_search"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	MaxTokens     int     `json:"max_tokens"`
	IgnoreEOS     bool    `json:"ignore_eos"`
	Stream        bool    `json:"stream"`
}

// generateChunk is one streamed response chunk. The text field is either a
// single string or a singleton array of one string, depending on backend
// version.
type generateChunk struct {
	Text json.RawMessage `json:"text"`
}

// firstText extracts the text value from a chunk.
func (c *generateChunk) firstText() (string, error) {
	var s string
	if err := json.Unmarshal(c.Text, &s); err == nil {
		return s, nil
	}
	var arr []string
	if err := json.Unmarshal(c.Text, &arr); err != nil {
		return "", fmt.Errorf("chunk text is neither string nor array: %w", err)
	}
	if len(arr) == 0 {
		return "", fmt.Errorf("chunk text array is empty")
	}
	return arr[0], nil
}

// vllmCaller talks to a vLLM /generate endpoint. Streamed chunks are
// NUL-delimited JSON objects, each carrying the cumulative output so far;
// only the last chunk's text is kept. vLLM echoes the prompt in its output.
type vllmCaller struct {
	opts   Options
	client *http.Client
}

func (v *vllmCaller) Name() string { return NameVLLM }

func (v *vllmCaller) EchoesPrompt() bool { return true }

func (v *vllmCaller) Call(ctx context.Context, prompt string, maxNewTokens int) (*ResponseDetails, error) {
	payload := generatePayload{
		Prompt:        prompt,
		N:             1,
		UseBeamSearch: false,
		Temperature:   v.opts.Temperature,
		TopP:          v.opts.TopP,
		MaxTokens:     maxNewTokens,
		IgnoreEOS:     v.opts.IgnoreEOS,
		Stream:        v.opts.Stream,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.opts.Endpoint+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if v.opts.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	start := time.Now()
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}

	details := &ResponseDetails{
		Prompt:    prompt,
		StartTime: start,
	}

	if !v.opts.Stream {
		var chunk generateChunk
		if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		text, err := chunk.firstText()
		if err != nil {
			return nil, err
		}
		details.Output = text
		details.EndTime = time.Now()
		return details, nil
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	scanner.Split(splitNUL)

	lastToken := start
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			return nil, fmt.Errorf("decode chunk: %w", err)
		}
		text, err := chunk.firstText()
		if err != nil {
			return nil, err
		}
		now := time.Now()
		details.TokenGenTime = append(details.TokenGenTime, now.Sub(lastToken).Seconds())
		lastToken = now
		// Chunks are cumulative; the latest one wins.
		details.Output = text
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	details.EndTime = time.Now()
	return details, nil
}

// splitNUL is a bufio.SplitFunc for NUL-delimited streams. A trailing
// fragment without a delimiter is returned at EOF.
func splitNUL(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

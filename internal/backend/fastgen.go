package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// fastgenChunk is one SSE data payload from a FastGen endpoint.
type fastgenChunk struct {
	Text json.RawMessage `json:"text"`
	// ModelTime is the server-side generation time in seconds, reported on
	// the final chunk only.
	ModelTime float64 `json:"model_time"`
}

// fastgenCaller talks to a FastGen /generate endpoint. Streamed chunks use
// SSE framing: newline-delimited "data: {...}" lines terminated by
// "data: [DONE]". Chunks are cumulative like vLLM's, but the prompt is not
// echoed in the output.
type fastgenCaller struct {
	opts   Options
	client *http.Client
}

func (f *fastgenCaller) Name() string { return NameFastGen }

func (f *fastgenCaller) EchoesPrompt() bool { return false }

func (f *fastgenCaller) Call(ctx context.Context, prompt string, maxNewTokens int) (*ResponseDetails, error) {
	payload := generatePayload{
		Prompt:        prompt,
		N:             1,
		UseBeamSearch: false,
		Temperature:   f.opts.Temperature,
		TopP:          f.opts.TopP,
		MaxTokens:     maxNewTokens,
		IgnoreEOS:     f.opts.IgnoreEOS,
		Stream:        f.opts.Stream,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.opts.Endpoint+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if f.opts.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	start := time.Now()
	resp, err := f.client.Do(req)
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

	if !f.opts.Stream {
		var chunk fastgenChunk
		if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		text, err := (&generateChunk{Text: chunk.Text}).firstText()
		if err != nil {
			return nil, err
		}
		details.Output = text
		details.ModelTime = chunk.ModelTime
		details.EndTime = time.Now()
		return details, nil
	}

	reader := bufio.NewReader(resp.Body)
	lastToken := start
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read stream: %w", err)
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}
		var chunk fastgenChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("decode chunk: %w", err)
		}
		text, err := (&generateChunk{Text: chunk.Text}).firstText()
		if err != nil {
			return nil, err
		}
		now := time.Now()
		details.TokenGenTime = append(details.TokenGenTime, now.Sub(lastToken).Seconds())
		lastToken = now
		details.Output = text
		if chunk.ModelTime > 0 {
			details.ModelTime = chunk.ModelTime
		}
	}

	details.EndTime = time.Now()
	return details, nil
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// amlRequest is the scoring payload for an AML online endpoint.
type amlRequest struct {
	InputData amlInputData `json:"input_data"`
}

type amlInputData struct {
	InputString []string      `json:"input_string"`
	Parameters  amlParameters `json:"parameters"`
}

type amlParameters struct {
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
	MaxNewTokens int     `json:"max_new_tokens"`
}

// amlResponse is the scoring response: one output string per input.
type amlResponse struct {
	Output []string `json:"output"`
}

// amlCaller talks to an Azure ML online scoring endpoint. The protocol is a
// single JSON request/response exchange; there is no streaming, so
// TokenGenTime stays empty.
type amlCaller struct {
	opts   Options
	client *http.Client
}

func (a *amlCaller) Name() string { return NameAML }

func (a *amlCaller) EchoesPrompt() bool { return false }

func (a *amlCaller) Call(ctx context.Context, prompt string, maxNewTokens int) (*ResponseDetails, error) {
	payload := amlRequest{
		InputData: amlInputData{
			InputString: []string{prompt},
			Parameters: amlParameters{
				Temperature:  a.opts.Temperature,
				TopP:         a.opts.TopP,
				MaxNewTokens: maxNewTokens,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if a.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.opts.APIKey)
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}

	var out amlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Output) == 0 {
		return nil, fmt.Errorf("empty output")
	}

	return &ResponseDetails{
		Prompt:    prompt,
		Output:    out.Output[0],
		StartTime: start,
		EndTime:   time.Now(),
	}, nil
}

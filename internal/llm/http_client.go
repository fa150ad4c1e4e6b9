package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"redraft/internal/core"
)

const (
	connectTimeout = 30 * time.Second
	readTimeout    = 60 * time.Second
	totalTimeout   = 300 * time.Second
)

// HTTPClient talks to an OpenAI-compatible chat completions endpoint with a
// bearer token. Both plain JSON and SSE streaming responses are supported.
type HTTPClient struct {
	endpoint     string
	apiKey       string
	defaultModel string
	httpClient   *http.Client
}

// NewHTTPClient builds a client for the configured endpoint. The endpoint is
// normalised to end in /chat/completions.
func NewHTTPClient(endpoint, apiKey, defaultModel string) (*HTTPClient, error) {
	if endpoint == "" {
		return nil, core.E(core.KindValidation, "llm endpoint_url is required")
	}
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.HasSuffix(endpoint, "/chat/completions") {
		if !strings.HasSuffix(endpoint, "/v1") {
			endpoint += "/v1"
		}
		endpoint += "/chat/completions"
	}

	return &HTTPClient{
		endpoint:     endpoint,
		apiKey:       apiKey,
		defaultModel: defaultModel,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
				ResponseHeaderTimeout: readTimeout,
			},
		},
	}, nil
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
	MaxTokens        int           `json:"max_tokens"`
	Stream           bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Call performs one chat completion. Context cancellation and the 300s total
// budget both abort the request cleanly.
func (c *HTTPClient) Call(ctx context.Context, prompt string, params Params) (*Result, error) {
	if prompt == "" {
		return nil, core.E(core.KindValidation, "prompt is empty")
	}

	model := params.Model
	if model == "" {
		model = c.defaultModel
	}

	body, err := json.Marshal(chatRequest{
		Model:            model,
		Messages:         []chatMessage{{Role: "user", Content: prompt}},
		Temperature:      params.temperature(),
		TopP:             params.topP(),
		FrequencyPenalty: params.frequencyPenalty(),
		PresencePenalty:  params.presencePenalty(),
		MaxTokens:        params.maxTokens(),
		Stream:           params.Stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, totalTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if params.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, core.Ef(core.KindTransport, "llm endpoint returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if params.Stream || strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return c.consumeStream(ctx, resp.Body)
	}
	return c.consumeJSON(resp.Body)
}

func (c *HTTPClient) consumeJSON(body io.Reader) (*Result, error) {
	var parsed chatResponse
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return nil, core.Wrap(core.KindLLMFailure, "parse llm response", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, core.E(core.KindLLMFailure, "llm returned no usable text")
	}
	return &Result{
		Text:         parsed.Choices[0].Message.Content,
		Usage:        parsed.Usage,
		FinishReason: parsed.Choices[0].FinishReason,
	}, nil
}

// consumeStream concatenates delta.content fragments from an SSE stream. The
// stream ends at the [DONE] marker or EOF.
func (c *HTTPClient) consumeStream(ctx context.Context, body io.Reader) (*Result, error) {
	var text strings.Builder
	var usage Usage
	finishReason := ""

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil, core.Wrap(core.KindLLMFailure, "parse llm stream chunk", err)
		}
		if chunk.Usage.TotalTokens > 0 {
			usage = chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		text.WriteString(chunk.Choices[0].Delta.Content)
		if chunk.Choices[0].FinishReason != "" {
			finishReason = chunk.Choices[0].FinishReason
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, classifyTransportErr(ctx, err)
	}
	if text.Len() == 0 {
		return nil, core.E(core.KindLLMFailure, "llm stream produced no text")
	}

	return &Result{Text: text.String(), Usage: usage, FinishReason: finishReason}, nil
}

// classifyTransportErr maps a network-level failure onto the error taxonomy.
func classifyTransportErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return core.Wrap(core.KindCancelled, "llm call cancelled", err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return core.Wrap(core.KindTimeout, "llm call timed out", err)
	default:
		return core.Wrap(core.KindTransport, "llm call failed", err)
	}
}

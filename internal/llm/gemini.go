package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultModel = "gemini-2.0-flash"

	apiURLFormat = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"
	timeoutSecs  = 60

	maxRetries     = 3
	retryBaseDelay = 500 * time.Millisecond
	maxRequestSize = 200000 // ~200KB limit for safety
)

type geminiClient struct {
	apiKey string
	model  string
	http   *http.Client
	logger zerolog.Logger
}

// NewGemini creates a Gemini client. The key is mandatory; callers that can
// operate without reasoning should pass a nil Client instead.
func NewGemini(apiKey, model string, logger zerolog.Logger) (Client, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, errors.New("missing gemini api key")
	}
	model = strings.Trim(strings.TrimSpace(model), "\"'")
	if model == "" {
		model = defaultModel
	}
	return &geminiClient{
		apiKey: key,
		model:  model,
		http: &http.Client{
			Timeout: timeoutSecs * time.Second,
		},
		logger: logger,
	}, nil
}

func (c *geminiClient) Name() string { return c.model }

func (c *geminiClient) GenerateStructured(ctx context.Context, systemInstruction, query string, schema map[string]any, out any) error {
	genCfg := &geminiGenerationConfig{
		ResponseMimeType: "application/json",
		ResponseSchema:   schema,
	}
	text, err := c.generate(ctx, systemInstruction, query, genCfg)
	if err != nil {
		return err
	}
	text = stripCodeFences(text)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("parse structured response: %w (raw=%q)", err, truncateForLog(text))
	}
	return nil
}

func (c *geminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "", prompt, nil)
}

func (c *geminiClient) generate(ctx context.Context, system, prompt string, genCfg *geminiGenerationConfig) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("empty prompt")
	}
	if len(prompt) > maxRequestSize {
		c.logger.Warn().Int("size", len(prompt)).Msg("prompt too large, truncating")
		prompt = prompt[:maxRequestSize] + "... [truncated]"
	}
	if len(system) > maxRequestSize {
		c.logger.Warn().Int("size", len(system)).Msg("system instruction too large, truncating")
		system = system[:maxRequestSize] + "... [truncated]"
	}

	payload := geminiPayload{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: genCfg,
	}
	if system != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
			c.logger.Info().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying Gemini API call")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		c.logger.Debug().
			Str("model", c.model).
			Int("payload_size", len(body)).
			Bool("structured", genCfg != nil).
			Msg("Gemini API request")

		url := fmt.Sprintf(apiURLFormat, c.model)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			if attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			if attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		c.logger.Debug().
			Int("status", resp.StatusCode).
			Int("response_size", len(data)).
			Msg("Gemini API response")

		if resp.StatusCode >= 400 {
			var apiErr geminiErrorEnvelope
			if jsonErr := json.Unmarshal(data, &apiErr); jsonErr != nil || apiErr.Error.Message == "" {
				lastErr = fmt.Errorf("gemini %d: %s", resp.StatusCode, truncateForLog(string(data)))
			} else {
				lastErr = fmt.Errorf("gemini %d: %s (status: %s)", resp.StatusCode, apiErr.Error.Message, apiErr.Error.Status)
			}
			c.logger.Error().
				Int("status", resp.StatusCode).
				Err(lastErr).
				Int("attempt", attempt).
				Msg("Gemini API error")
			// Retry on rate limits and server errors only.
			if (resp.StatusCode == 429 || resp.StatusCode >= 500) && attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		var gr geminiResponse
		if err := json.Unmarshal(data, &gr); err != nil {
			lastErr = fmt.Errorf("parse response: %w", err)
			if attempt < maxRetries {
				continue
			}
			return "", lastErr
		}
		if len(gr.Candidates) == 0 {
			lastErr = errors.New("gemini: empty candidates")
			if attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		var buf bytes.Buffer
		for _, part := range gr.Candidates[0].Content.Parts {
			buf.WriteString(part.Text)
		}
		c.logger.Debug().Int("response_length", buf.Len()).Msg("Gemini API success")
		return buf.String(), nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// stripCodeFences removes markdown ```json fences the model sometimes wraps
// structured output in.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateForLog(s string) string {
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}

type geminiPayload struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

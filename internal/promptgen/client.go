// Package promptgen calls an external generative-text API to invent a new
// daily poll question. The response is untrusted: anything the client cannot
// parse into a question plus four options degrades to a static fallback.
package promptgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"consensus-poll-service/internal/domain"
)

const generationPrompt = "Generate a controversial but fun daily poll question for a general online community. " +
	"The question should be engaging, spark debate, and have 4 distinct, popular options. " +
	"Return the result in JSON format as {\"question\": string, \"options\": [4 strings]}."

// Fallback is the fixed question/options pair substituted when the generated
// payload cannot be used.
var Fallback = domain.GeneratedPrompt{
	Question: "Which office supply is the most superior?",
	Options:  []string{"Mechanical Pencil", "Gel Pen", "Stapler", "Highlighter"},
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string

	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to a generateContent-style text API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	model := opts.Model
	if model == "" {
		model = "gemini-3-flash-preview"
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		model:      model,
		httpClient: hc,
	}, nil
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GenerateDailyPrompt requests a fresh question with exactly 4 distinct
// options. Transport and HTTP failures are returned as errors; a response that
// arrives but cannot be parsed into a usable prompt yields Fallback with no
// error, matching the collaborator contract.
func (c *Client) GenerateDailyPrompt(ctx context.Context) (domain.GeneratedPrompt, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: generationPrompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return domain.GeneratedPrompt{}, err
	}

	url := c.baseURL + "/v1beta/models/" + c.model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.GeneratedPrompt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeneratedPrompt{}, fmt.Errorf("generate prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeneratedPrompt{}, fmt.Errorf("generate prompt: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		log.Printf("unparseable generation response, using fallback: %v", err)
		return Fallback, nil
	}
	text := firstText(decoded)

	var generated domain.GeneratedPrompt
	if err := json.Unmarshal([]byte(text), &generated); err != nil || !usable(generated) {
		log.Printf("generated prompt unusable, using fallback")
		return Fallback, nil
	}
	return generated, nil
}

func firstText(resp generateResponse) string {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return resp.Candidates[0].Content.Parts[0].Text
}

// usable enforces the contract: a question plus exactly 4 distinct options.
func usable(p domain.GeneratedPrompt) bool {
	if strings.TrimSpace(p.Question) == "" || len(p.Options) != 4 {
		return false
	}
	seen := make(map[string]struct{}, 4)
	for _, opt := range p.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return false
		}
		if _, dup := seen[opt]; dup {
			return false
		}
		seen[opt] = struct{}{}
	}
	return true
}

package watsonx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// iamGrantType exchanges an IBM Cloud API key for a short-lived access token.
const iamGrantType = "urn:ibm:params:oauth:grant-type:apikey"

// Options configures a watsonx.ai client.
type Options struct {
	BaseURL          string
	IAMURL           string // empty sends the API key itself as the bearer token
	APIKey           string
	ProjectID        string
	APIVersion       string
	Model            string
	EmbeddingModel   string
	EmbeddingVersion string
	DecodingMethod   string
	MaxNewTokens     int
	Temperature      float64
	Timeout          time.Duration
}

// Client implements embeddings and text generation against watsonx.ai.
type Client struct {
	opts       Options
	httpClient *http.Client

	mu           sync.Mutex
	accessToken  string
	tokenExpires time.Time
}

type iamResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type generationRequest struct {
	ModelID    string               `json:"model_id"`
	Input      string               `json:"input"`
	ProjectID  string               `json:"project_id"`
	Parameters generationParameters `json:"parameters"`
}

type generationParameters struct {
	DecodingMethod string  `json:"decoding_method,omitempty"`
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
}

type generationResponse struct {
	Results []struct {
		GeneratedText string `json:"generated_text"`
	} `json:"results"`
}

type embeddingInput struct {
	InputText string `json:"input_text"`
}

type embeddingRequest struct {
	InputData []embeddingInput `json:"input_data"`
}

type embeddingResponse struct {
	Results []struct {
		Values []float32 `json:"values"`
	} `json:"results"`
}

// New creates a client. Timeout zero means requests never time out.
func New(opts Options) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.IAMURL = strings.TrimRight(opts.IAMURL, "/")
	return &Client{opts: opts, httpClient: &http.Client{Timeout: opts.Timeout}}
}

// Embed returns one vector per input text, in order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	data := make([]embeddingInput, len(texts))
	for i, t := range texts {
		data[i] = embeddingInput{InputText: t}
	}

	endpoint := fmt.Sprintf("%s/feature_store/v1/models/%s/versions/%s/inference",
		c.opts.BaseURL, url.PathEscape(c.opts.EmbeddingModel), url.PathEscape(c.opts.EmbeddingVersion))

	var resp embeddingResponse
	if err := c.post(ctx, endpoint, c.opts.APIKey, embeddingRequest{InputData: data}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Results))
	}
	vecs := make([][]float32, len(resp.Results))
	for i, r := range resp.Results {
		vecs[i] = r.Values
	}
	return vecs, nil
}

// Complete generates a single-shot completion for prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body := generationRequest{
		ModelID:   c.opts.Model,
		Input:     prompt,
		ProjectID: c.opts.ProjectID,
		Parameters: generationParameters{
			DecodingMethod: c.opts.DecodingMethod,
			MaxNewTokens:   c.opts.MaxNewTokens,
			Temperature:    c.opts.Temperature,
		},
	}
	endpoint := c.opts.BaseURL + "/ml/v1/text/generation?version=" + url.QueryEscape(c.opts.APIVersion)

	token, err := c.bearer(ctx)
	if err != nil {
		return "", err
	}
	var resp generationResponse
	if err := c.post(ctx, endpoint, token, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", errors.New("no results in response")
	}
	return strings.TrimSpace(resp.Results[0].GeneratedText), nil
}

// bearer returns the token for the generation endpoint, exchanging the API
// key at the IAM service when one is configured. Tokens are reused until a
// minute before they expire.
func (c *Client) bearer(ctx context.Context) (string, error) {
	if c.opts.IAMURL == "" {
		return c.opts.APIKey, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpires) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", iamGrantType)
	form.Set("apikey", c.opts.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.IAMURL+"/identity/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request IAM token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("IAM returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var tok iamResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to parse IAM response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("no access_token in IAM response")
	}
	c.accessToken = tok.AccessToken
	c.tokenExpires = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

func (c *Client) post(ctx context.Context, endpoint, token string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

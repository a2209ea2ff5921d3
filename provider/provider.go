package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/glpisum/config"
	openai_provider "github.com/mohammad-safakhou/glpisum/provider/openai"
	"github.com/mohammad-safakhou/glpisum/provider/watsonx"
)

// Client represents the supported hosted LLM backends
type Client string

const (
	Watsonx Client = "watsonx"
	OpenAI  Client = "openai"
)

// DefaultWatsonxURL is the watsonx.ai region used when llm.url is empty.
const DefaultWatsonxURL = "https://us-south.ml.cloud.ibm.com"

// DefaultIAMURL issues watsonx access tokens unless llm.raw_api_key is set.
const DefaultIAMURL = "https://iam.cloud.ibm.com"

// modelDefaults holds the generation and embedding models used when unset.
var modelDefaults = map[Client]struct {
	model, embeddingModel, embeddingVersion string
}{
	Watsonx: {"ibm/granite-13b-instruct-v2", "sentence-transformers-all-minilm-l6-v2", "21"},
	OpenAI:  {"gpt-4o-mini", "text-embedding-3-small", ""},
}

// ErrMissingCredentials is returned when the selected backend lacks its API key or project.
var ErrMissingCredentials = errors.New("llm credentials not configured")

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer produces a single-shot text completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Embedder
	Completer
}

// New creates an LLM client based on the provided configuration
func New(cfg config.LLMConfig) (Provider, error) {
	cfg = withDefaults(cfg)
	switch Client(cfg.Type) {
	case Watsonx:
		if cfg.APIKey == "" || cfg.ProjectID == "" {
			return nil, fmt.Errorf("watsonx: api key and project id must be set: %w", ErrMissingCredentials)
		}
		return watsonx.New(watsonx.Options{
			BaseURL:          cfg.URL,
			IAMURL:           cfg.IAMURL,
			APIKey:           cfg.APIKey,
			ProjectID:        cfg.ProjectID,
			APIVersion:       cfg.APIVersion,
			Model:            cfg.Model,
			EmbeddingModel:   cfg.EmbeddingModel,
			EmbeddingVersion: cfg.EmbeddingVersion,
			DecodingMethod:   cfg.DecodingMethod,
			MaxNewTokens:     cfg.MaxNewTokens,
			Temperature:      cfg.Temperature,
			Timeout:          cfg.Timeout,
		}), nil
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: api key must be set: %w", ErrMissingCredentials)
		}
		return openai_provider.NewOpenAIClient(cfg.APIKey, cfg.URL, cfg.Model, cfg.EmbeddingModel, cfg.Temperature, cfg.MaxNewTokens, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Type)
	}
}

// withDefaults fills the backend-specific values the config leaves empty.
func withDefaults(cfg config.LLMConfig) config.LLMConfig {
	if cfg.Type == "" {
		cfg.Type = string(Watsonx)
	}
	d, ok := modelDefaults[Client(cfg.Type)]
	if !ok {
		return cfg
	}
	if cfg.Model == "" {
		cfg.Model = d.model
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = d.embeddingModel
	}
	if cfg.EmbeddingVersion == "" {
		cfg.EmbeddingVersion = d.embeddingVersion
	}
	if Client(cfg.Type) == Watsonx {
		if cfg.URL == "" {
			cfg.URL = DefaultWatsonxURL
		}
		switch {
		case cfg.RawAPIKey:
			cfg.IAMURL = ""
		case cfg.IAMURL == "":
			cfg.IAMURL = DefaultIAMURL
		}
	}
	return cfg
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the summarization service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	GLPI      GLPIConfig      `mapstructure:"glpi"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Report    ReportConfig    `mapstructure:"report"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GLPIConfig contains the ticketing REST API settings
type GLPIConfig struct {
	URL       string        `mapstructure:"url"`
	AppToken  string        `mapstructure:"app_token"`
	UserToken string        `mapstructure:"user_token"`
	Timeout   time.Duration `mapstructure:"timeout"` // zero means no timeout
}

func (g GLPIConfig) Validate() error {
	if strings.TrimSpace(g.URL) == "" {
		return fmt.Errorf("glpi.url required")
	}
	if strings.TrimSpace(g.AppToken) == "" {
		return fmt.Errorf("glpi.app_token required")
	}
	return nil
}

// LLMConfig selects and configures the hosted embedding/generation provider
type LLMConfig struct {
	Type             string        `mapstructure:"type"` // watsonx, openai
	URL              string        `mapstructure:"url"`
	IAMURL           string        `mapstructure:"iam_url"`     // watsonx only
	RawAPIKey        bool          `mapstructure:"raw_api_key"` // skip the IAM exchange
	APIKey           string        `mapstructure:"api_key"`
	ProjectID        string        `mapstructure:"project_id"`
	APIVersion       string        `mapstructure:"api_version"`
	Model            string        `mapstructure:"model"`
	EmbeddingModel   string        `mapstructure:"embedding_model"`
	EmbeddingVersion string        `mapstructure:"embedding_version"`
	DecodingMethod   string        `mapstructure:"decoding_method"`
	MaxNewTokens     int           `mapstructure:"max_new_tokens"`
	Temperature      float64       `mapstructure:"temperature"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	switch l.Type {
	case "watsonx", "openai":
	default:
		return fmt.Errorf("llm.type %q not supported (watsonx, openai)", l.Type)
	}
	if l.MaxNewTokens < 0 {
		return fmt.Errorf("llm.max_new_tokens cannot be negative")
	}
	return nil
}

// RetrievalConfig tunes the transient retrieval index
type RetrievalConfig struct {
	TopK  int    `mapstructure:"top_k"`
	Query string `mapstructure:"query"`
}

// Normalize applies defaults for unset retrieval values.
func (r RetrievalConfig) Normalize() RetrievalConfig {
	if r.TopK <= 0 {
		r.TopK = 4
	}
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		r.Query = "Give me a summary of this ticket."
	}
	return r
}

// ReportConfig controls where rendered reports are written before upload
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// StorageConfig contains object storage settings
type StorageConfig struct {
	S3 S3Config `mapstructure:"s3"`
}

// S3Config contains object storage configuration.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

func (s S3Config) Validate() error {
	if strings.TrimSpace(s.Bucket) == "" {
		return fmt.Errorf("storage.s3.bucket required")
	}
	if (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
		return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key must be set together")
	}
	return nil
}

// legacyEnv maps the bare variable names used by existing deployments onto config keys.
var legacyEnv = map[string]string{
	"glpi.url":                     "GLPI_URL",
	"glpi.app_token":               "GLPI_APP_TOKEN",
	"glpi.user_token":              "GLPI_USER_TOKEN",
	"llm.api_key":                  "WATSONX_API_KEY",
	"llm.project_id":               "WATSONX_PROJECT_ID",
	"llm.url":                      "WATSONX_URL",
	"storage.s3.endpoint":          "WASABI_ENDPOINT_URL",
	"storage.s3.access_key_id":     "WASABI_ACCESS_KEY_ID",
	"storage.s3.secret_access_key": "WASABI_SECRET_ACCESS_KEY",
	"storage.s3.region":            "WASABI_REGION",
	"storage.s3.bucket":            "WASABI_BUCKET_NAME",
}

// LoadConfig loads config from an optional JSON file and the environment.
// An empty path searches the usual locations; a missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":8001")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("glpi.timeout", time.Duration(0))
	v.SetDefault("llm.type", "watsonx")
	v.SetDefault("llm.timeout", time.Duration(0))
	v.SetDefault("llm.api_version", "2023-05-29")
	v.SetDefault("llm.raw_api_key", false)
	v.SetDefault("llm.decoding_method", "sample")
	v.SetDefault("llm.max_new_tokens", 200)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("retrieval.top_k", 4)
	v.SetDefault("retrieval.query", "Give me a summary of this ticket.")
	v.SetDefault("report.output_dir", ".")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.use_path_style", false)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("GLPISUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // GLPISUM_*
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "GLPISUM_"+strings.ToUpper(strings.NewReplacer(".", "_").Replace(key)), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Retrieval = cfg.Retrieval.Normalize()
	if cfg.Server.Address != "" && !strings.Contains(cfg.Server.Address, ":") {
		cfg.Server.Address = ":" + cfg.Server.Address
	}

	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv exports variables from a dotenv file without overriding the
// ones already present in the environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
	}
	return nil
}

package chat

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds configuration for the chat backend.
type AppConfig struct {
	Addr          string `yaml:"addr"`
	PublicBaseURL string `yaml:"public_base_url"`

	StoreDriver      string `yaml:"store_driver"`
	SQLitePath       string `yaml:"sqlite_path"`
	DatabaseURL      string `yaml:"database_url"`
	FirestoreProject string `yaml:"firestore_project"`

	GenerationBackend string        `yaml:"generation_backend"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`
	OllamaHost        string        `yaml:"ollama_host"`
	Models            ModelSet      `yaml:"models"`
	GeminiAPI         string        `yaml:"gemini_api"`
	GeminiModel       string        `yaml:"gemini_model"`
	GeminiModels      ModelSet      `yaml:"gemini_models"`
	HFToken           string        `yaml:"hf_token"`
	HFImageModel      string        `yaml:"hf_image_model"`
	HFBaseURL         string        `yaml:"hf_base_url"`

	ImagesDir          string   `yaml:"images_dir"`
	UploadsDir         string   `yaml:"uploads_dir"`
	InteractionLog     string   `yaml:"interaction_log"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	ExtractConcurrency int      `yaml:"extract_concurrency"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// DefaultAppConfig returns the configuration used when nothing is set.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Addr:               ":8000",
		PublicBaseURL:      "http://localhost:8000",
		StoreDriver:        "sqlite",
		SQLitePath:         "chat_history.db",
		GenerationBackend:  "ollama",
		GenerationTimeout:  300 * time.Second,
		OllamaHost:         "http://localhost:11434",
		Models:             DefaultModels(),
		GeminiModel:        "gemini-2.5-flash",
		HFImageModel:       "stabilityai/stable-diffusion-xl-base-1.0",
		HFBaseURL:          "https://router.huggingface.co/hf-inference",
		ImagesDir:          "generated_images",
		UploadsDir:         "uploads",
		InteractionLog:     "training_data.jsonl",
		AllowedOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		ExtractConcurrency: 4,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// LoadConfig loads configuration from environment variables with sensible defaults.
func LoadConfig() AppConfig {
	cfg := DefaultAppConfig()
	applyEnv(&cfg)
	return cfg
}

// LoadConfigFile reads a YAML file over the defaults, then applies environment
// overrides. An empty path behaves like LoadConfig.
func LoadConfigFile(path string) (AppConfig, error) {
	cfg := DefaultAppConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return AppConfig{}, fmt.Errorf("chat: read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("chat: parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	setString(&cfg.Addr, "ADDR")
	setString(&cfg.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&cfg.StoreDriver, "STORE_DRIVER")
	setString(&cfg.SQLitePath, "SQLITE_PATH")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.FirestoreProject, "FIRESTORE_PROJECT")
	setString(&cfg.GenerationBackend, "GENERATION_BACKEND")
	setString(&cfg.OllamaHost, "OLLAMA_HOST")
	setString(&cfg.Models.Vision, "MODEL_VISION")
	setString(&cfg.Models.Logic, "MODEL_LOGIC")
	setString(&cfg.Models.Code, "MODEL_CODE")
	setString(&cfg.Models.General, "MODEL_GENERAL")
	setString(&cfg.GeminiAPI, "GEMINI_API")
	setString(&cfg.GeminiModel, "GEMINI_MODEL")
	setString(&cfg.GeminiModels.Vision, "GEMINI_MODEL_VISION")
	setString(&cfg.GeminiModels.Logic, "GEMINI_MODEL_LOGIC")
	setString(&cfg.GeminiModels.Code, "GEMINI_MODEL_CODE")
	setString(&cfg.GeminiModels.General, "GEMINI_MODEL_GENERAL")
	setString(&cfg.HFToken, "HF_TOKEN")
	setString(&cfg.HFImageModel, "HF_IMAGE_MODEL")
	setString(&cfg.HFBaseURL, "HF_BASE_URL")
	setString(&cfg.ImagesDir, "IMAGES_DIR")
	setString(&cfg.UploadsDir, "UPLOADS_DIR")
	setString(&cfg.InteractionLog, "INTERACTION_LOG")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}

	// Numeric settings
	if v := os.Getenv("GENERATION_TIMEOUT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.GenerationTimeout = time.Duration(parsed) * time.Second
		}
	}
	if v := os.Getenv("EXTRACT_CONCURRENCY"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.ExtractConcurrency = parsed
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

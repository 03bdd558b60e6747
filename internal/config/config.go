package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"detectserver/internal/model"
)

// Detector backends understood by DETECTOR_BACKEND.
const (
	BackendOpenCV = "opencv"
	BackendONNX   = "onnx"
	BackendRemote = "remote"
)

type Config struct {
	Port                  int
	ArtifactDirectory     string
	UniqueArtifactNames   bool          // Prefix stored artifacts with a UUID instead of reusing the client filename
	ArtifactRetention     time.Duration // 0 keeps artifacts forever
	ArtifactPruneInterval time.Duration
	MaxUploadBytes        int64
	MaxImagePixels        int
	DetectorBackend       string
	ModelDirectory        string
	ModelCatalogPath      string
	ONNXLibraryPath       string
	InferenceURL          string
	ConfidenceThreshold   float64
	NMSThreshold          float64
	DatabasePath          string // Empty disables the prediction journal
	LogDirectory          string
	OTLPEndpoint          string
	ServiceName           string
	AllowedOrigins        []string
	RateLimitPerMinute    int // 0 disables rate limiting
	RequestTimeout        time.Duration
	Metadata              model.ModelMetadata
	Models                Catalog
}

// Load reads .env (if present) and the environment. The model catalog is
// read from MODEL_CATALOG when set, otherwise defaults under MODEL_DIR are used.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnvAsInt("PORT", 8000),
		ArtifactDirectory:     getEnv("ARTIFACT_DIR", filepath.Join(".", "images_uploaded")),
		UniqueArtifactNames:   getEnvAsBool("ARTIFACT_UNIQUE_NAMES", false),
		ArtifactRetention:     time.Duration(getEnvAsInt("ARTIFACT_RETENTION_HOURS", 0)) * time.Hour,
		ArtifactPruneInterval: time.Duration(getEnvAsPositiveInt("ARTIFACT_PRUNE_INTERVAL", 600)) * time.Second,
		MaxUploadBytes:        getEnvAsInt64("MAX_UPLOAD_MB", 32) << 20,
		MaxImagePixels:        getEnvAsPositiveInt("MAX_IMAGE_PIXELS", 50_000_000),
		DetectorBackend:       strings.ToLower(getEnv("DETECTOR_BACKEND", BackendOpenCV)),
		ModelDirectory:        getEnv("MODEL_DIR", filepath.Join(".", "models")),
		ModelCatalogPath:      getEnv("MODEL_CATALOG", ""),
		ONNXLibraryPath:       getEnv("ONNX_LIBRARY_PATH", ""),
		InferenceURL:          getEnv("INFERENCE_URL", "http://localhost:5000/predict"),
		ConfidenceThreshold:   getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.5),
		NMSThreshold:          getEnvAsFloat("NMS_THRESHOLD", 0.3),
		DatabasePath:          getEnvAllowEmpty("DB_PATH", filepath.Join(".", "data", "predictions.db")),
		LogDirectory:          getEnv("LOG_DIR", filepath.Join(".", "logs")),
		OTLPEndpoint:          getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:           getEnv("OTEL_SERVICE_NAME", "detectserver"),
		AllowedOrigins:        getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute:    getEnvAsInt("RATE_LIMIT_PER_MINUTE", 0),
		RequestTimeout:        time.Duration(getEnvAsInt("REQUEST_TIMEOUT", 60)) * time.Second,
		Metadata:              DefaultMetadata(),
	}

	if cfg.ModelCatalogPath != "" {
		catalog, err := LoadCatalog(cfg.ModelCatalogPath)
		if err != nil {
			return nil, err
		}
		cfg.Models = catalog
	} else {
		cfg.Models = DefaultCatalog(cfg.ModelDirectory)
	}

	return cfg, nil
}

// DefaultMetadata is the record served by GET /metadata.
func DefaultMetadata() model.ModelMetadata {
	return model.ModelMetadata{
		Name:        "yolov3",
		Version:     2,
		Trainable:   false,
		LastUpdated: time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC),
		Tags:        []string{"AI", "Skynet"},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty honours an explicitly empty value.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsPositiveInt rejects zero and negative values.
func getEnvAsPositiveInt(key string, defaultValue int) int {
	if value := getEnvAsInt(key, defaultValue); value > 0 {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

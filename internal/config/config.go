package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// TransportMode selects how extracted audio reaches the inference service.
type TransportMode string

const (
	// TransportInline sends the audio as base64 payload data in the job body.
	TransportInline TransportMode = "inline"
	// TransportUpload pushes the audio to a temporary file host and sends the URL.
	TransportUpload TransportMode = "upload"
)

// Config is built once at startup and passed by reference into each
// component. Nothing reads the environment after this point.
type Config struct {
	ServerPort   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Brightcove-style CMS access
	AccountID    string
	ClientID     string
	ClientSecret string
	OAuthURL     string
	CMSAPIURL    string

	// Inference service
	InferenceAPIURL   string
	InferenceAPIToken string
	ModelVersion      string
	PollInterval      time.Duration
	MaxPollAttempts   int

	// Audio handling
	FFmpegPath    string
	ScratchDir    string
	ExportDir     string
	TransportMode TransportMode
	UploadURL     string

	RateLimit      int
	RateLimitBurst int
}

// DefaultModelVersion pins the base64-capable Whisper build the job
// payload submits. Changing it changes transcription output.
const DefaultModelVersion = "e2f4a83f0de6f3f5a9e7e1db1cccb2a3d45c4a2301bc4863a4856d6bce15b105"

func Load() *Config {
	return &Config{
		ServerPort:   GetEnv("PORT", "8080"),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 120*time.Second),

		AccountID:    GetEnv("BRIGHTCOVE_ACCOUNT_ID", ""),
		ClientID:     GetEnv("BRIGHTCOVE_CLIENT_ID", ""),
		ClientSecret: GetEnv("BRIGHTCOVE_CLIENT_SECRET", ""),
		OAuthURL:     GetEnv("BRIGHTCOVE_OAUTH_URL", "https://oauth.brightcove.com/v4/access_token"),
		CMSAPIURL:    GetEnv("BRIGHTCOVE_CMS_URL", "https://cms.api.brightcove.com/v1"),

		InferenceAPIURL:   GetEnv("REPLICATE_API_URL", "https://api.replicate.com/v1/predictions"),
		InferenceAPIToken: GetEnv("REPLICATE_API_TOKEN", ""),
		ModelVersion:      GetEnv("WHISPER_MODEL_VERSION", DefaultModelVersion),
		PollInterval:      getEnvAsDuration("POLL_INTERVAL", 5*time.Second),
		MaxPollAttempts:   getEnvAsInt("MAX_POLL_ATTEMPTS", 240),

		FFmpegPath:    GetEnv("FFMPEG_PATH", "ffmpeg"),
		ScratchDir:    GetEnv("SCRATCH_DIR", os.TempDir()),
		ExportDir:     GetEnv("EXPORT_DIR", os.TempDir()),
		TransportMode: TransportMode(GetEnv("AUDIO_TRANSPORT", string(TransportUpload))),
		UploadURL:     GetEnv("UPLOAD_URL", "https://tmpfiles.org/api/v1/upload"),

		RateLimit:      getEnvAsInt("RATE_LIMIT", 30),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
}

// Validate rejects configurations the pipeline cannot run with.
func Validate(cfg *Config) error {
	if cfg.AccountID == "" {
		return errors.New("BRIGHTCOVE_ACCOUNT_ID is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return errors.New("BRIGHTCOVE_CLIENT_ID and BRIGHTCOVE_CLIENT_SECRET are required")
	}
	if cfg.InferenceAPIToken == "" {
		return errors.New("REPLICATE_API_TOKEN is required")
	}
	if cfg.TransportMode != TransportInline && cfg.TransportMode != TransportUpload {
		return errors.Errorf("invalid AUDIO_TRANSPORT %q (want inline or upload)", cfg.TransportMode)
	}
	if cfg.MaxPollAttempts <= 0 {
		return errors.New("MAX_POLL_ATTEMPTS must be positive")
	}
	return nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

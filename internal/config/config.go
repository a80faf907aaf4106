package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Voice is one entry of the language to voice map. Engine, when set, routes
// the language to that engine instead of TTS_ENGINE.
type Voice struct {
	LanguageCode string `yaml:"language_code"`
	Name         string `yaml:"name"`
	Engine       string `yaml:"engine"`
}

// Config holds all application configuration.
type Config struct {
	// Discord settings
	DiscordToken          string `yaml:"discord_token"`
	GuildID               string `yaml:"guild_id"`
	DefaultVoiceChannelID string `yaml:"default_voice_channel_id"`

	// HTTP settings
	HTTPPort    int    `yaml:"http_port"`
	BearerToken string `yaml:"bearer_token"`

	// TTS settings
	TTSEngine        string           `yaml:"tts_engine"`
	PiperPath        string           `yaml:"piper_path"`
	PiperModel       string           `yaml:"piper_model"`
	PiperSpeaker     string           `yaml:"piper_speaker"`
	TTSEndpoint      string           `yaml:"tts_endpoint"`
	TTSAPIKey        string           `yaml:"tts_api_key"`
	TTSCommand       string           `yaml:"tts_command"`
	SynthesisTimeout time.Duration    `yaml:"synthesis_timeout"`
	DefaultLanguage  string           `yaml:"default_language"`
	Voices           map[string]Voice `yaml:"voices"`

	// Narration settings
	MaxChunkChars int           `yaml:"max_chunk_chars"`
	AutoLeaveIdle time.Duration `yaml:"auto_leave_idle"`

	// Audio settings
	AudioSink    string `yaml:"audio_sink"`
	AudioDecoder string `yaml:"audio_decoder"`
	FFmpegPath   string `yaml:"ffmpeg_path"`

	// Storage settings
	DocumentsPath      string `yaml:"documents_path"`
	EventStorePath     string `yaml:"event_store_path"`
	EventRetentionDays int    `yaml:"event_retention_days"`
	EventMaxSessions   int    `yaml:"event_max_sessions"`

	// Bus settings
	NATSURL           string `yaml:"nats_url"`
	NATSEmbedded      bool   `yaml:"nats_embedded"`
	NATSPort          int    `yaml:"nats_port"`
	NATSSubjectPrefix string `yaml:"nats_subject_prefix"`

	// Telemetry settings
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	TraceStdout    bool   `yaml:"trace_stdout"`

	// Logging settings
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTPPort: 8080,

		TTSEngine:        "piper",
		PiperPath:        "piper",
		SynthesisTimeout: 60 * time.Second,
		DefaultLanguage:  "en-US",

		MaxChunkChars: 4000,
		AutoLeaveIdle: 5 * time.Minute,

		AudioSink:    "discord",
		AudioDecoder: "ffmpeg",
		FFmpegPath:   "ffmpeg",

		EventRetentionDays: 30,
		EventMaxSessions:   1000,

		NATSPort:          4222,
		NATSSubjectPrefix: "narrator",

		OTLPInsecure: true,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (if any) and environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %w", err)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DiscordToken = getEnvString("DISCORD_TOKEN", c.DiscordToken)
	c.GuildID = getEnvString("GUILD_ID", c.GuildID)
	c.DefaultVoiceChannelID = getEnvString("DEFAULT_VOICE_CHANNEL_ID", c.DefaultVoiceChannelID)

	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.BearerToken = getEnvString("BEARER_TOKEN", c.BearerToken)

	c.TTSEngine = getEnvString("TTS_ENGINE", c.TTSEngine)
	c.PiperPath = getEnvString("PIPER_PATH", c.PiperPath)
	c.PiperModel = getEnvString("PIPER_MODEL", c.PiperModel)
	c.PiperSpeaker = getEnvString("PIPER_SPEAKER", c.PiperSpeaker)
	c.TTSEndpoint = getEnvString("TTS_ENDPOINT", c.TTSEndpoint)
	c.TTSAPIKey = getEnvString("TTS_API_KEY", c.TTSAPIKey)
	c.TTSCommand = getEnvString("TTS_COMMAND", c.TTSCommand)
	c.SynthesisTimeout = getEnvDuration("SYNTHESIS_TIMEOUT", c.SynthesisTimeout)
	c.DefaultLanguage = getEnvString("DEFAULT_LANGUAGE", c.DefaultLanguage)

	c.MaxChunkChars = getEnvInt("MAX_CHUNK_CHARS", c.MaxChunkChars)
	c.AutoLeaveIdle = getEnvDuration("AUTO_LEAVE_IDLE", c.AutoLeaveIdle)

	c.AudioSink = getEnvString("AUDIO_SINK", c.AudioSink)
	c.AudioDecoder = getEnvString("AUDIO_DECODER", c.AudioDecoder)
	c.FFmpegPath = getEnvString("FFMPEG_PATH", c.FFmpegPath)

	c.DocumentsPath = getEnvString("DOCUMENTS_PATH", c.DocumentsPath)
	c.EventStorePath = getEnvString("EVENT_STORE_PATH", c.EventStorePath)
	c.EventRetentionDays = getEnvInt("EVENT_RETENTION_DAYS", c.EventRetentionDays)
	c.EventMaxSessions = getEnvInt("EVENT_MAX_SESSIONS", c.EventMaxSessions)

	c.NATSURL = getEnvString("NATS_URL", c.NATSURL)
	c.NATSEmbedded = getEnvBool("NATS_EMBEDDED", c.NATSEmbedded)
	c.NATSPort = getEnvInt("NATS_PORT", c.NATSPort)
	c.NATSSubjectPrefix = getEnvString("NATS_SUBJECT_PREFIX", c.NATSSubjectPrefix)

	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.OTLPEndpoint = getEnvString("OTLP_ENDPOINT", c.OTLPEndpoint)
	c.OTLPInsecure = getEnvBool("OTLP_INSECURE", c.OTLPInsecure)
	c.TraceStdout = getEnvBool("TRACE_STDOUT", c.TraceStdout)

	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvString("LOG_FORMAT", c.LogFormat)
}

// AuthDisabled returns true if bearer token authentication is disabled.
func (c *Config) AuthDisabled() bool {
	return c.BearerToken == ""
}

// BusEnabled reports whether the NATS bus should be started.
func (c *Config) BusEnabled() bool {
	return c.NATSEmbedded || c.NATSURL != ""
}

// Engines lists the synthesis engines with enough settings to run: the
// selected TTS_ENGINE plus any other engine whose settings are present.
func (c *Config) Engines() []string {
	var names []string
	for _, name := range []string{"piper", "http", "exec"} {
		if name == c.TTSEngine || c.engineConfigured(name) {
			names = append(names, name)
		}
	}
	return names
}

func (c *Config) engineConfigured(name string) bool {
	switch name {
	case "piper":
		return c.PiperModel != ""
	case "http":
		return c.TTSEndpoint != ""
	case "exec":
		return strings.TrimSpace(c.TTSCommand) != ""
	}
	return false
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.New("HTTP_PORT must be between 1 and 65535")
	}

	switch c.TTSEngine {
	case "piper":
	case "http":
		if c.TTSEndpoint == "" {
			return errors.New("TTS_ENDPOINT is required when TTS_ENGINE is http")
		}
	case "exec":
		if strings.TrimSpace(c.TTSCommand) == "" {
			return errors.New("TTS_COMMAND is required when TTS_ENGINE is exec")
		}
	default:
		return errors.New("TTS_ENGINE must be one of: piper, http, exec")
	}

	if c.SynthesisTimeout < 0 {
		return errors.New("SYNTHESIS_TIMEOUT must be non-negative")
	}

	if c.MaxChunkChars < 1 {
		return errors.New("MAX_CHUNK_CHARS must be at least 1")
	}

	if c.AutoLeaveIdle < 0 {
		return errors.New("AUTO_LEAVE_IDLE must be non-negative")
	}

	switch c.AudioSink {
	case "discord":
		if c.DiscordToken == "" || c.GuildID == "" || c.DefaultVoiceChannelID == "" {
			return errors.New("DISCORD_TOKEN, GUILD_ID and DEFAULT_VOICE_CHANNEL_ID are required when AUDIO_SINK is discord")
		}
	case "speaker", "discard":
	default:
		return errors.New("AUDIO_SINK must be one of: discord, speaker, discard")
	}

	if c.AudioDecoder != "ffmpeg" && c.AudioDecoder != "native" {
		return errors.New("AUDIO_DECODER must be one of: ffmpeg, native")
	}

	if c.EventRetentionDays < 0 || c.EventMaxSessions < 0 {
		return errors.New("EVENT_RETENTION_DAYS and EVENT_MAX_SESSIONS must be non-negative")
	}

	if c.NATSEmbedded && (c.NATSPort < 1 || c.NATSPort > 65535) {
		return errors.New("NATS_PORT must be between 1 and 65535")
	}

	if c.BusEnabled() && c.NATSSubjectPrefix == "" {
		return errors.New("NATS_SUBJECT_PREFIX must not be empty")
	}

	for lang, v := range c.Voices {
		if v.Name == "" {
			return fmt.Errorf("voice for %q must have a name", lang)
		}
		if v.Engine != "" && v.Engine != c.TTSEngine && !c.engineConfigured(v.Engine) {
			return fmt.Errorf("voice for %q uses engine %q, which is not configured", lang, v.Engine)
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("LOG_FORMAT must be one of: text, json")
	}

	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

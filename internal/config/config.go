package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		BaseURL        string   `yaml:"base_url"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
	Spotify struct {
		ClientID     string   `yaml:"client_id"`
		ClientSecret string   `yaml:"client_secret"`
		RedirectURL  string   `yaml:"redirect_url"`
		Scopes       []string `yaml:"scopes"`
		PlaylistID   string   `yaml:"playlist_id"`
		APIBaseURL   string   `yaml:"api_base_url"`
	} `yaml:"spotify"`
	Auth struct {
		SessionSecret string `yaml:"session_secret"`
		SessionTTL    string `yaml:"session_ttl"`
		AdminToken    string `yaml:"admin_token"`
		SecureCookies bool   `yaml:"secure_cookies"`
	} `yaml:"auth"`
	Quiz struct {
		Questions       int    `yaml:"questions"`
		QuestionSeconds int    `yaml:"question_seconds"`
		OptionCount     int    `yaml:"option_count"`
		PlayTimeout     string `yaml:"play_timeout"`
		SaveTimeout     string `yaml:"save_timeout"`
		PlayRetryBase   string `yaml:"play_retry_base"`
		PlayAttempts    int    `yaml:"play_attempts"`
		PoolTTL         string `yaml:"pool_ttl"`
		LeaderboardTTL  string `yaml:"leaderboard_ttl"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path, then applies .env and environment overrides.
// A missing file is not an error; defaults and the environment still apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.BaseURL, "BASE_URL")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Postgres.URL, "POSTGRES_URL")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	setString(&cfg.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	setString(&cfg.Spotify.RedirectURL, "SPOTIFY_REDIRECT_URL")
	setString(&cfg.Spotify.PlaylistID, "SPOTIFY_PLAYLIST_ID")
	setString(&cfg.Auth.SessionSecret, "SESSION_SECRET")
	setString(&cfg.Auth.AdminToken, "ADMIN_TOKEN")
	if v := os.Getenv("QUIZ_QUESTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Quiz.Questions = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "quiz.sessions.completed"
	}
	if len(cfg.Spotify.Scopes) == 0 {
		cfg.Spotify.Scopes = []string{
			"user-read-email",
			"user-read-private",
			"streaming",
			"user-read-playback-state",
			"user-modify-playback-state",
		}
	}
	if cfg.Spotify.PlaylistID == "" {
		cfg.Spotify.PlaylistID = "75AsluzBUNhrjKMjEdCVnv"
	}
	if cfg.Auth.AdminToken == "" {
		cfg.Auth.AdminToken = cfg.Spotify.ClientSecret
	}
	if cfg.Quiz.Questions <= 0 {
		cfg.Quiz.Questions = 10
	}
	if cfg.Quiz.QuestionSeconds <= 0 {
		cfg.Quiz.QuestionSeconds = 30
	}
	if cfg.Quiz.OptionCount <= 0 {
		cfg.Quiz.OptionCount = 4
	}
	if cfg.Quiz.PlayAttempts <= 0 {
		cfg.Quiz.PlayAttempts = 3
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config mirrors the settings file. JSON settings files parse too.
type Config struct {
	Version                     string   `yaml:"version"`
	TasksFile                   string   `yaml:"tasks_file"`
	TimetableFile               string   `yaml:"timetable_file"`
	NotificationIntervalSeconds int      `yaml:"notification_interval_seconds"`
	MinutesBeforeTask           int      `yaml:"minutes_before_task"`
	GraceMinutesAfterStart      int      `yaml:"grace_minutes_after_start"`
	Timezone                    string   `yaml:"timezone"`
	TimezoneList                []string `yaml:"timezone_list"`
	OpenRouterAPIURL            string   `yaml:"openrouter_api_url"`
	LLMModel                    string   `yaml:"llm_model"`
	LLMRetries                  int      `yaml:"llm_retries"`
	JournalTimeoutSeconds       int      `yaml:"journal_timeout_seconds"`
	JournalBackend              string   `yaml:"journal_backend"`
	JournalFolder               string   `yaml:"journal_folder"`
	JournalDB                   string   `yaml:"journal_db"`
	StateFile                   string   `yaml:"state_file"`
	LogFile                     string   `yaml:"log_file"`
	NotificationLogFile         string   `yaml:"notification_log_file"`
	DesktopNotifications        bool     `yaml:"desktop_notifications"`
	StartupNotification         bool     `yaml:"startup_notification"`
	DebugMode                   bool     `yaml:"debug_mode"`

	// Environment only.
	APIKey     string `yaml:"-"`
	DebugLevel string `yaml:"-"`
}

func Default() Config {
	return Config{
		Version:                     "1.0.0",
		TasksFile:                   "tasks.json",
		NotificationIntervalSeconds: 1800,
		MinutesBeforeTask:           15,
		GraceMinutesAfterStart:      2,
		Timezone:                    "Local",
		TimezoneList:                []string{"Local", "UTC", "Asia/Kolkata", "America/New_York"},
		OpenRouterAPIURL:            "https://openrouter.ai/api/v1/chat/completions",
		LLMModel:                    "meta-llama/llama-3-8b-instruct",
		LLMRetries:                  3,
		JournalTimeoutSeconds:       10,
		JournalBackend:              BackendFile,
		JournalFolder:               "journal",
		JournalDB:                   "journal/nagd.db",
		StateFile:                   ".nagd_state.json",
		LogFile:                     "app.log",
		NotificationLogFile:         "notifications.log",
		DesktopNotifications:        true,
		StartupNotification:         true,
		DebugLevel:                  "info",
	}
}

// Load reads .env (if any), the settings file at path (if it exists) and
// finally the environment.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg, err := LoadFile(Default(), path)
	if err != nil {
		return Config{}, err
	}
	cfg = FromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadFile(base Config, path string) (Config, error) {
	cfg := base
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", trimmed, err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", trimmed, err)
	}
	if cfg.TimetableFile != "" && cfg.TasksFile == base.TasksFile {
		cfg.TasksFile = cfg.TimetableFile
	}
	return cfg, nil
}

func FromEnv(base Config) Config {
	cfg := base
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")); v != "" {
		cfg.APIKey = v
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("DEBUG_LEVEL"))); v != "" {
		cfg.DebugLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("NAGD_TASKS_FILE")); v != "" {
		cfg.TasksFile = v
	}
	if v, ok := getEnvInt("NAGD_NOTIFICATION_INTERVAL_SECONDS"); ok && v > 0 {
		cfg.NotificationIntervalSeconds = v
	}
	if v := strings.TrimSpace(os.Getenv("NAGD_TIMEZONE")); v != "" {
		cfg.Timezone = v
	}
	if v, ok := getEnvBool("NAGD_DESKTOP_NOTIFICATIONS"); ok {
		cfg.DesktopNotifications = v
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("NAGD_JOURNAL_BACKEND"))); v != "" {
		cfg.JournalBackend = v
	}
	if v := strings.TrimSpace(os.Getenv("NAGD_JOURNAL_FOLDER")); v != "" {
		cfg.JournalFolder = v
	}
	return cfg
}

func (c Config) Validate() error {
	if c.NotificationIntervalSeconds <= 0 {
		return fmt.Errorf("%w: notification_interval_seconds must be positive, got %d", ErrInvalidConfig, c.NotificationIntervalSeconds)
	}
	if c.MinutesBeforeTask < 0 {
		return fmt.Errorf("%w: minutes_before_task must not be negative", ErrInvalidConfig)
	}
	if c.GraceMinutesAfterStart < 0 {
		return fmt.Errorf("%w: grace_minutes_after_start must not be negative", ErrInvalidConfig)
	}
	if c.JournalTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: journal_timeout_seconds must be positive", ErrInvalidConfig)
	}
	switch c.JournalBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("%w: unknown journal_backend %q", ErrInvalidConfig, c.JournalBackend)
	}
	if strings.TrimSpace(c.TasksFile) == "" {
		return fmt.Errorf("%w: tasks_file is required", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	return LoadLocation(c.Timezone)
}

func LoadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, name)
	}
	return loc, nil
}

// AllowsTimezone reports whether name is one of the switchable zones.
func (c Config) AllowsTimezone(name string) bool {
	for _, tz := range c.TimezoneList {
		if strings.EqualFold(tz, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.NotificationIntervalSeconds) * time.Second
}

func (c Config) Lead() time.Duration {
	return time.Duration(c.MinutesBeforeTask) * time.Minute
}

// Grace is how long after a task starts it still counts as just started.
func (c Config) Grace() time.Duration {
	return time.Duration(c.GraceMinutesAfterStart) * time.Minute
}

func (c Config) JournalTimeout() time.Duration {
	return time.Duration(c.JournalTimeoutSeconds) * time.Second
}

func (c Config) Debug() bool {
	return c.DebugMode || c.DebugLevel == "debug"
}

func getEnvInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func getEnvBool(name string) (bool, bool) {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return false, false
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	defaultPort            = "8080"
	defaultTimezone        = "Europe/Moscow"
	defaultDispatcherLimit = 20
	defaultDispatcherQueue = 200
	defaultLLMModel        = "gemini-2.5-flash"
)

// Settings groups runtime knobs that are not feature flags.
type Settings struct {
	Port string

	TeamName     string
	TemplatePath string
	PromptsPath  string
	Location     *time.Location

	DispatcherLimit    int
	DispatcherQueue    int
	TaskTimeout        time.Duration
	SerialLockTimeout  time.Duration
	DictionaryCacheTTL time.Duration

	BotURL      string
	BotTimeout  time.Duration
	NotifyTopic string

	GCSBucket      string
	ReportsPrefix  string
	DriveFolderURL string

	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration
}

// LoadSettings reads Settings from the environment. Only an unknown timezone is an error.
func LoadSettings() (Settings, error) {
	s := Settings{
		Port:               firstNonEmpty(os.Getenv("API_PORT"), os.Getenv("PORT"), defaultPort),
		TeamName:           firstNonEmpty(os.Getenv("TEAM_NAME"), "team"),
		TemplatePath:       firstNonEmpty(os.Getenv("REPORT_TEMPLATE_PATH"), "configs/report_template.xlsx"),
		PromptsPath:        firstNonEmpty(os.Getenv("PROMPTS_PATH"), "configs/prompts.yaml"),
		DispatcherLimit:    intFromEnv("DISPATCHER_LIMIT", defaultDispatcherLimit),
		DispatcherQueue:    intFromEnv("DISPATCHER_QUEUE", defaultDispatcherQueue),
		TaskTimeout:        time.Duration(intFromEnv("TASK_TIMEOUT_SECONDS", 300)) * time.Second,
		SerialLockTimeout:  time.Duration(intFromEnv("SERIAL_LOCK_TIMEOUT_SECONDS", 10)) * time.Second,
		DictionaryCacheTTL: time.Duration(intFromEnv("DICTIONARY_CACHE_TTL_SECONDS", 600)) * time.Second,
		BotURL:             strings.TrimRight(strings.TrimSpace(os.Getenv("BOT_URL")), "/"),
		BotTimeout:         time.Duration(intFromEnv("BOT_TIMEOUT_SECONDS", 10)) * time.Second,
		NotifyTopic:        strings.TrimSpace(os.Getenv("NOTIFY_TOPIC")),
		GCSBucket:          strings.TrimSpace(os.Getenv("GCS_BUCKET")),
		ReportsPrefix:      strings.Trim(strings.TrimSpace(os.Getenv("REPORTS_PREFIX")), "/"),
		DriveFolderURL:     strings.TrimSpace(os.Getenv("GOOGLE_DRIVE_FOLDER_URL")),
		LLMAPIKey:          strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		LLMModel:           firstNonEmpty(os.Getenv("LLM_MODEL"), defaultLLMModel),
		LLMTimeout:         time.Duration(intFromEnv("LLM_TIMEOUT_SECONDS", 90)) * time.Second,
	}
	if s.DispatcherLimit <= 0 {
		s.DispatcherLimit = defaultDispatcherLimit
	}
	if s.DispatcherQueue < 0 {
		s.DispatcherQueue = defaultDispatcherQueue
	}
	if s.TaskTimeout < 0 {
		s.TaskTimeout = 0
	}

	tz := firstNonEmpty(os.Getenv("APP_TIMEZONE"), defaultTimezone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return s, fmt.Errorf("APP_TIMEZONE %q: %w", tz, err)
	}
	s.Location = loc
	return s, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

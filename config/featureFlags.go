package config

import (
	"os"
	"strings"
)

const (
	ExtractionModeAuto      = "AUTO"
	ExtractionModeAnnotated = "ANNOTATED"
)

func flagFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// MessageDumpEnabled uploads every report message text to the artifact store.
//
// Set via env:
// - MESSAGE_DUMP_ENABLED=true
func MessageDumpEnabled() bool {
	return flagFromEnv("MESSAGE_DUMP_ENABLED", false)
}

// SerialTrackingEnabled stamps messages with a per-submitter serial number.
// Dumped messages are named by serial, so it follows MESSAGE_DUMP_ENABLED unless set explicitly.
//
// Set via env:
// - SERIAL_TRACKING_ENABLED=true
func SerialTrackingEnabled() bool {
	return flagFromEnv("SERIAL_TRACKING_ENABLED", MessageDumpEnabled())
}

// BotReplyOnFailed sends the failure text back to the chat thread after a failed run.
func BotReplyOnFailed() bool {
	return flagFromEnv("BOT_REPLY_ON_FAILED", false)
}

// ReportCompileEnabled toggles the incremental per-day spreadsheet. Defaults to on.
func ReportCompileEnabled() bool {
	return flagFromEnv("REPORT_COMPILE_ENABLED", true)
}

// ExtractionMode selects how the extractor labels entities.
// AUTO returns bare labels; ANNOTATED returns labels pre-tagged valid/predict/raw.
// Legacy value DEMO maps to ANNOTATED.
func ExtractionMode() string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("EXTRACTION_MODE")))
	switch v {
	case ExtractionModeAnnotated, "DEMO":
		return ExtractionModeAnnotated
	default:
		return ExtractionModeAuto
	}
}

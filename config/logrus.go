package config

import (
	"context"
	"io"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/agromate_backend/appctx"
	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = newLogger(os.Stdout)
}

// newLogger builds the process logger. LOG_LEVEL picks the level (default info),
// LOG_FORMAT=text switches to the human readable formatter for local runs.
func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	l.SetLevel(logLevelFromEnv())
	l.SetOutput(out)
	return l
}

func logLevelFromEnv() logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func errorFields(moduleName, funcName, context string, data any) logrus.Fields {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	return fields
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	logger.WithFields(errorFields(moduleName, funcName, context, data)).Error(err.Error())
}

// LogErrorContext is LogError plus the request and message ids carried by ctx.
func LogErrorContext(ctx context.Context, logger *logrus.Logger, moduleName string, funcName string, errContext string, data any, err error) {
	fields := errorFields(moduleName, funcName, errContext, data)
	if cid, ok := appctx.GetString(ctx, appctx.ContextKeyCorrelationId); ok {
		fields["correlation_id"] = cid
	}
	if id, ok := appctx.GetUint(ctx, appctx.ContextKeyMessageId); ok {
		fields["message_id"] = id
	}
	if src, ok := appctx.GetString(ctx, appctx.ContextKeyIngestSource); ok {
		fields["source"] = src
	}
	logger.WithFields(fields).Error(err.Error())
}

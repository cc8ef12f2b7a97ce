// Package app assembles the message workflow from configuration. The HTTP
// server and the command line tools share it.
package app

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/agromate_backend/config"
	"bitbucket.org/mmdatafocus/agromate_backend/llm"
	"bitbucket.org/mmdatafocus/agromate_backend/models"
	"bitbucket.org/mmdatafocus/agromate_backend/notifier"
	"bitbucket.org/mmdatafocus/agromate_backend/spreadsheet"
	"bitbucket.org/mmdatafocus/agromate_backend/utils"
	"bitbucket.org/mmdatafocus/agromate_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type App struct {
	Settings   config.Settings
	Logger     *logrus.Logger
	Store      *models.Store
	Artifacts  utils.ArtifactStore
	Compiler   *spreadsheet.Compiler
	LLM        *llm.Client
	Relay      notifier.Relay
	Dispatcher *workflow.Dispatcher
	Workflow   *workflow.MessageWorkflow
	Reporter   *workflow.Reporter
}

// New wires every collaborator against db. Redis and the notification targets
// are optional; storage and the model client are not.
func New(ctx context.Context, settings config.Settings, db *gorm.DB, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = config.GetLogger()
	}

	store := models.NewStore(db, config.SerialTrackingEnabled(), settings.SerialLockTimeout, settings.DictionaryCacheTTL)

	artifacts, err := utils.NewArtifactStore(ctx, utils.GetStorageProvider(), utils.StorageOptions{
		GCSBucket:      settings.GCSBucket,
		ReportsPrefix:  settings.ReportsPrefix,
		DriveFolderURL: settings.DriveFolderURL,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}

	compiler, err := spreadsheet.NewCompiler(settings.TemplatePath, artifacts, settings.TeamName, logger)
	if err != nil {
		return nil, err
	}

	prompts, err := llm.LoadPrompts(settings.PromptsPath)
	if err != nil {
		return nil, err
	}
	model, err := llm.NewClient(ctx, llm.Options{
		APIKey:  settings.LLMAPIKey,
		Model:   settings.LLMModel,
		Timeout: settings.LLMTimeout,
		Mode:    config.ExtractionMode(),
		Prompts: prompts,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	relay := NewRelay(settings)
	dispatcher := workflow.NewDispatcher(settings.DispatcherLimit, settings.DispatcherQueue, settings.TaskTimeout, logger)

	wf := workflow.NewMessageWorkflow(store, model, model, compiler, relay, dispatcher, logger)
	wf.Dumps = artifacts
	wf.Locker = config.GetRedisLock()
	wf.Location = settings.Location
	wf.ReplyOnFailed = config.BotReplyOnFailed()
	wf.DumpMessages = config.MessageDumpEnabled()
	wf.CompileEnabled = config.ReportCompileEnabled()

	logger.WithFields(logrus.Fields{
		"field":            "app.New",
		"storage":          utils.GetStorageProvider(),
		"extraction_mode":  config.ExtractionMode(),
		"dispatcher_limit": settings.DispatcherLimit,
		"serial_tracking":  config.SerialTrackingEnabled(),
		"timezone":         settings.Location.String(),
	}).Info("workflow ready")

	return &App{
		Settings:   settings,
		Logger:     logger,
		Store:      store,
		Artifacts:  artifacts,
		Compiler:   compiler,
		LLM:        model,
		Relay:      relay,
		Dispatcher: dispatcher,
		Workflow:   wf,
		Reporter:   workflow.NewReporter(store, compiler, model, logger),
	}, nil
}

// NewRelay fans out to the chat bot and the status topic when configured.
func NewRelay(settings config.Settings) notifier.Relay {
	var relays notifier.Multi
	if settings.BotURL != "" {
		relays = append(relays, notifier.NewBotClient(settings.BotURL, settings.BotTimeout))
	}
	if settings.NotifyTopic != "" {
		relays = append(relays, &notifier.PubSubPublisher{Topic: settings.NotifyTopic, Publish: config.PublishJSON})
	}
	if len(relays) == 0 {
		return notifier.Nop{}
	}
	return relays
}

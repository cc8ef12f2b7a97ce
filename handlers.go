package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/config"
	"bitbucket.org/mmdatafocus/agromate_backend/models"
	"bitbucket.org/mmdatafocus/agromate_backend/utils"
	"bitbucket.org/mmdatafocus/agromate_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"
)

type messageIngester interface {
	Ingest(ctx context.Context, input models.NewChatMessageInput) (*models.ChatMessage, error)
}

type dailyReporter interface {
	BuildDailyReport(ctx context.Context, date time.Time) (*workflow.DailyReport, error)
}

type handlers struct {
	ingester messageIngester
	reporter dailyReporter
	location *time.Location
	now      func() time.Time
	logger   *logrus.Logger
}

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type reportRequest struct {
	Date string `json:"date"`
}

func (h *handlers) createMessage(c *gin.Context) {
	var input models.NewChatMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}

	ctx := utils.SetIngestSourceInContext(c.Request.Context(), "http")
	msg, err := h.ingester.Ingest(ctx, input)
	if err != nil {
		config.LogErrorContext(ctx, h.logger, "handlers.go", "createMessage", "Ingest", input.MessageID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *handlers) createReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	date, err := workflow.ReportDate(req.Date, h.now(), h.location)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.reporter.BuildDailyReport(c.Request.Context(), date)
	if err != nil {
		config.LogErrorContext(c.Request.Context(), h.logger, "handlers.go", "createReport", "BuildDailyReport", req.Date, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// pubsubMessages accepts the same payload as createMessage wrapped in a Pub/Sub
// push envelope. Poisoned messages are acked; storage failures are retried.
func (h *handlers) pubsubMessages(c *gin.Context) {
	var msg PubSubMessage

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		config.LogError(h.logger, "handlers.go", "pubsubMessages", "io.ReadAll", nil, err)
		c.Status(http.StatusNoContent)
		return
	}
	// byte slice unmarshalling handles base64 decoding.
	if err := json.Unmarshal(body, &msg); err != nil {
		config.LogError(h.logger, "handlers.go", "pubsubMessages", "Unmarshal body", string(body), err)
		c.Status(http.StatusNoContent)
		return
	}

	var input models.NewChatMessageInput
	if err := json.Unmarshal(msg.Message.Data, &input); err != nil {
		config.LogError(h.logger, "handlers.go", "pubsubMessages", "Unmarshal pubsub message", string(msg.Message.Data), err)
		c.Status(http.StatusNoContent)
		return
	}
	if err := binding.Validator.ValidateStruct(&input); err != nil {
		config.LogError(h.logger, "handlers.go", "pubsubMessages", "Invalid pubsub message", utils.ProcessValidationErrors(err), err)
		c.Status(http.StatusNoContent)
		return
	}

	ctx := utils.SetIngestSourceInContext(c.Request.Context(), "pubsub")
	stored, err := h.ingester.Ingest(ctx, input)
	if err != nil {
		config.LogErrorContext(ctx, h.logger, "handlers.go", "pubsubMessages", "Ingest", msg.Message.ID, err)
		c.Status(http.StatusInternalServerError)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"field":             "pubsubMessages",
		"pubsub_message_id": msg.Message.ID,
		"message_id":        stored.ID,
		"status":            stored.Status,
	}).Info("pubsub message ingested")
	c.Status(http.StatusNoContent)
}

func index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"service": "agromate", "status": "ok"})
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

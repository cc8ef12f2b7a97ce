package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/config"
	"bitbucket.org/mmdatafocus/agromate_backend/llm"
	"bitbucket.org/mmdatafocus/agromate_backend/models"
	"bitbucket.org/mmdatafocus/agromate_backend/notifier"
	"bitbucket.org/mmdatafocus/agromate_backend/resolution"
	"bitbucket.org/mmdatafocus/agromate_backend/spreadsheet"
	"bitbucket.org/mmdatafocus/agromate_backend/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const compileLockKey = "lock:compile"

// Store is the persistence the workflow needs. models.Store implements it.
type Store interface {
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	FindMessage(ctx context.Context, chatID, messageID int64) (*models.ChatMessage, error)
	TransitionStatus(ctx context.Context, id uint, from, to models.MessageStatus, text *string) error
	LoadDictionaries(ctx context.Context) (*models.DictionarySnapshot, error)
	SaveReports(ctx context.Context, reports []*models.Report) error
	ReportsOn(ctx context.Context, date time.Time) ([]*models.Report, error)
}

type Classifier interface {
	Classify(ctx context.Context, text string) llm.Classification
}

type Extractor interface {
	Extract(ctx context.Context, text string, snap resolution.Snapshot) ([]resolution.ExtractedEntry, error)
}

// ReportCompiler folds rows into day workbooks. spreadsheet.Compiler implements it.
type ReportCompiler interface {
	Compile(ctx context.Context, reportingDate time.Time, entries []spreadsheet.Entry) (utils.ArtifactRef, error)
	Build(ctx context.Context, reportingDate time.Time, entries []spreadsheet.Entry) (utils.ArtifactRef, error)
}

// Scheduler runs background tasks. Dispatcher implements it. Go may block
// while the scheduler is saturated and fails only when ctx ends first.
type Scheduler interface {
	Go(ctx context.Context, name string, task Task) error
}

// MessageWorkflow drives a chat message from ingestion to a terminal status.
type MessageWorkflow struct {
	Store      Store
	Classifier Classifier
	Extractor  Extractor
	Compiler   ReportCompiler
	Notifier   notifier.Relay
	Scheduler  Scheduler
	// Dumps receives the raw text of report messages when DumpMessages is set.
	Dumps  utils.ArtifactStore
	Locker *redislock.Client
	Logger *logrus.Logger
	Tracer trace.Tracer

	Location       *time.Location
	ReplyOnFailed  bool
	DumpMessages   bool
	CompileEnabled bool
}

func NewMessageWorkflow(store Store, classifier Classifier, extractor Extractor, compiler ReportCompiler, relay notifier.Relay, scheduler Scheduler, logger *logrus.Logger) *MessageWorkflow {
	if relay == nil {
		relay = notifier.Nop{}
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &MessageWorkflow{
		Store:          store,
		Classifier:     classifier,
		Extractor:      extractor,
		Compiler:       compiler,
		Notifier:       relay,
		Scheduler:      scheduler,
		Logger:         logger,
		Tracer:         otel.Tracer("agromate-workflow"),
		Location:       time.UTC,
		CompileEnabled: true,
	}
}

func (w *MessageWorkflow) tracer() trace.Tracer {
	if w.Tracer == nil {
		return otel.Tracer("agromate-workflow")
	}
	return w.Tracer
}

func (w *MessageWorkflow) log(ctx context.Context, msg *models.ChatMessage) *logrus.Entry {
	fields := logrus.Fields{
		"message_id": msg.ID,
		"user_id":    msg.UserID,
		"chat_id":    msg.ChatID,
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = cid
	}
	if src, ok := utils.GetIngestSourceFromContext(ctx); ok {
		fields["source"] = src
	}
	return w.Logger.WithFields(fields)
}

// Ingest stores the message with its serial, classifies it and either marks it
// spam or hands it to the background pipeline. The returned message carries the
// status reached synchronously. A redelivered message is returned as stored and
// not processed again, unless the earlier delivery never got it out of new.
func (w *MessageWorkflow) Ingest(ctx context.Context, input models.NewChatMessageInput) (*models.ChatMessage, error) {
	msg := models.NewChatMessage(input, w.Location)
	if err := w.Store.CreateMessage(ctx, msg); err != nil {
		if !errors.Is(err, models.ErrDuplicateMessage) {
			return nil, err
		}
		existing, findErr := w.Store.FindMessage(ctx, input.ChatID, input.MessageID)
		if findErr != nil {
			return nil, fmt.Errorf("%w (lookup: %v)", err, findErr)
		}
		if existing.Status != models.MessageStatusNew {
			w.log(ctx, existing).WithField("field", "MessageWorkflow.Ingest").Info("duplicate delivery ignored")
			return existing, nil
		}
		w.log(ctx, existing).WithField("field", "MessageWorkflow.Ingest").Warn("resuming message left in new by an earlier delivery")
		msg = existing
	}
	ctx = utils.SetMessageIdInContext(ctx, msg.ID)
	ctx = utils.SetSubmitterIdInContext(ctx, strconv.FormatInt(msg.UserID, 10))

	verdict := w.classify(ctx, msg)
	if verdict.Kind == models.ClassificationNonReport {
		if err := w.transition(ctx, msg, models.MessageStatusSpam, nil); err != nil {
			return w.settled(ctx, msg, err)
		}
		w.notify(ctx, msg)
		return msg, nil
	}

	if err := w.transition(ctx, msg, models.MessageStatusProcessing, nil); err != nil {
		return w.settled(ctx, msg, err)
	}

	snapshot := *msg
	err := w.Scheduler.Go(ctx, fmt.Sprintf("message:%d", msg.ID), func(taskCtx context.Context) error {
		return w.runPipeline(taskCtx, &snapshot)
	})
	if err != nil {
		// processing has no way back to new; close the message instead of
		// leaving it without a pipeline.
		text := "not scheduled: " + err.Error()
		w.finish(context.WithoutCancel(ctx), msg, models.MessageStatusFailed, &text)
	}
	return msg, nil
}

// settled handles a failed synchronous transition. When a concurrent delivery
// already moved the message on, its stored state is the answer; otherwise the
// error goes back to the caller and the row stays in new for the redelivery.
func (w *MessageWorkflow) settled(ctx context.Context, msg *models.ChatMessage, err error) (*models.ChatMessage, error) {
	if !errors.Is(err, models.ErrInvalidTransition) {
		return nil, err
	}
	current, findErr := w.Store.FindMessage(ctx, msg.ChatID, msg.MessageID)
	if findErr != nil || current.Status == models.MessageStatusNew {
		return nil, err
	}
	w.log(ctx, current).WithField("field", "MessageWorkflow.Ingest").Info("message already taken by another delivery")
	return current, nil
}

// classify never fails. A faulted classification counts as a report so that
// nothing is silently dropped.
func (w *MessageWorkflow) classify(ctx context.Context, msg *models.ChatMessage) llm.Classification {
	ctx, span := w.tracer().Start(ctx, "workflow.classify", trace.WithAttributes(attribute.Int("message.id", int(msg.ID))))
	defer span.End()

	verdict := w.Classifier.Classify(ctx, msg.MessageText)
	if verdict.Faulted() {
		span.RecordError(verdict.Err)
		w.log(ctx, msg).WithField("field", "MessageWorkflow.classify").
			Warn("classifier failed, treating message as report: " + verdict.Err.Error())
		verdict.Kind = models.ClassificationFieldReport
	}
	span.SetAttributes(attribute.String("classification.kind", string(verdict.Kind)))
	return verdict
}

func (w *MessageWorkflow) transition(ctx context.Context, msg *models.ChatMessage, to models.MessageStatus, text *string) error {
	if err := w.Store.TransitionStatus(ctx, msg.ID, msg.Status, to, text); err != nil {
		return fmt.Errorf("message %d %s -> %s: %w", msg.ID, msg.Status, to, err)
	}
	msg.Status = to
	msg.StatusText = text
	return nil
}

// notify sends the one notification that belongs to a terminal transition.
// Delivery problems never touch the stored status.
func (w *MessageWorkflow) notify(ctx context.Context, msg *models.ChatMessage) {
	if err := w.Notifier.Notify(ctx, msg.ChatID, msg.MessageID, string(msg.Status)); err != nil {
		w.log(ctx, msg).WithField("field", "MessageWorkflow.notify").
			Warn("status notification failed: " + err.Error())
	}
}

// runPipeline is the background stage. It always leaves the message in a
// terminal status; a panic in any step is reported as a failure.
func (w *MessageWorkflow) runPipeline(ctx context.Context, msg *models.ChatMessage) (err error) {
	var count int
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panicked: %v", r)
		}
		// the task context may already be past its deadline
		finishCtx := context.WithoutCancel(ctx)
		if err != nil {
			text := err.Error()
			w.finish(finishCtx, msg, models.MessageStatusFailed, &text)
			return
		}
		text := fmt.Sprintf("report entries: %d", count)
		w.finish(finishCtx, msg, models.MessageStatusProcessed, &text)
	}()

	count, err = w.process(ctx, msg)
	return err
}

func (w *MessageWorkflow) finish(ctx context.Context, msg *models.ChatMessage, to models.MessageStatus, text *string) {
	if err := w.transition(ctx, msg, to, text); err != nil {
		config.LogErrorContext(ctx, w.Logger, "workflow", "MessageWorkflow.finish", "terminal transition", string(to), err)
		return
	}
	entry := w.log(ctx, msg).WithField("field", "MessageWorkflow.finish")
	if to == models.MessageStatusFailed {
		entry.Warn("message failed: " + *text)
	} else {
		entry.Info("message processed: " + *text)
	}

	w.notify(ctx, msg)
	if to == models.MessageStatusFailed && w.ReplyOnFailed {
		if err := w.Notifier.Reply(ctx, msg.ChatID, msg.MessageID, failureReply(*text)); err != nil {
			w.log(ctx, msg).WithField("field", "MessageWorkflow.finish").
				Warn("failure reply failed: " + err.Error())
		}
	}
}

func failureReply(statusText string) string {
	return "Could not process the report: " + statusText
}

// process extracts, resolves, stores and compiles one message. It returns the
// number of report rows written.
func (w *MessageWorkflow) process(ctx context.Context, msg *models.ChatMessage) (int, error) {
	ctx, span := w.tracer().Start(ctx, "workflow.process", trace.WithAttributes(attribute.Int("message.id", int(msg.ID))))
	defer span.End()

	if w.DumpMessages {
		w.dump(ctx, msg)
	}

	snap, err := w.Store.LoadDictionaries(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("load dictionaries: %w", err)
	}
	dicts := snap.Resolution()

	entries, err := w.extract(ctx, msg, dicts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	reports := make([]*models.Report, 0, len(entries))
	for _, e := range entries {
		resolved := resolution.ResolveEntry(e, dicts)
		measures := resolution.Normalize(e, msg.CreatedAt, w.Location)
		reports = append(reports, models.NewReport(msg.ID, resolved, measures))
	}

	if len(reports) > 0 {
		if err := w.Store.SaveReports(ctx, reports); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return 0, fmt.Errorf("save reports: %w", err)
		}
		if w.CompileEnabled && w.Compiler != nil {
			reportingDate := resolution.ReportingDate(msg.CreatedAt, w.Location)
			if err := w.compile(ctx, msg, reportingDate, sheetEntries(reports, snap)); err != nil {
				span.SetStatus(codes.Error, err.Error())
				return len(reports), err
			}
		}
	}
	span.SetAttributes(attribute.Int("report.count", len(reports)))
	return len(reports), nil
}

func (w *MessageWorkflow) extract(ctx context.Context, msg *models.ChatMessage, dicts resolution.Snapshot) ([]resolution.ExtractedEntry, error) {
	ctx, span := w.tracer().Start(ctx, "workflow.extract")
	defer span.End()

	entries, err := w.Extractor.Extract(ctx, msg.MessageText, dicts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("extract entries: %w", err)
	}
	span.SetAttributes(attribute.Int("entry.count", len(entries)))
	return entries, nil
}

// compile pushes rows into the day workbook. The Redis lock only narrows the
// window for overwrites racing across instances; without it the compiler's own
// mutex still serializes this process.
func (w *MessageWorkflow) compile(ctx context.Context, msg *models.ChatMessage, date time.Time, entries []spreadsheet.Entry) error {
	ctx, span := w.tracer().Start(ctx, "workflow.compile")
	defer span.End()

	var lock *redislock.Lock
	if w.Locker != nil {
		var err error
		lock, err = w.Locker.Obtain(ctx, compileLockKey, 2*time.Minute, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(250*time.Millisecond), 40),
		})
		if errors.Is(err, redislock.ErrNotObtained) {
			w.log(ctx, msg).WithField("field", "MessageWorkflow.compile").
				Warn("could not obtain redis lock; proceeding without redis lock")
			lock = nil
		} else if err != nil {
			w.log(ctx, msg).WithField("field", "MessageWorkflow.compile").
				Warn("redis lock error; proceeding without redis lock: " + err.Error())
			lock = nil
		}
	}
	if lock != nil {
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				w.log(ctx, msg).WithField("field", "MessageWorkflow.compile").
					Warn("failed to release redis lock: " + err.Error())
			}
		}()
	}

	ref, err := w.Compiler.Compile(ctx, date, entries)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("compile report: %w", err)
	}
	w.log(ctx, msg).WithFields(logrus.Fields{
		"field":       "MessageWorkflow.compile",
		"artifact_id": ref.ID,
		"report_on":   date.Format("2006-01-02"),
	}).Info("report workbook updated")
	return nil
}

// dump uploads the raw text for audit. Failures are logged only.
func (w *MessageWorkflow) dump(ctx context.Context, msg *models.ChatMessage) {
	if w.Dumps == nil {
		return
	}
	name := DumpFileName(msg, w.Location)
	if _, err := w.Dumps.Upload(ctx, name, []byte(msg.MessageText)); err != nil {
		w.log(ctx, msg).WithField("field", "MessageWorkflow.dump").
			Warn("message dump failed: " + err.Error())
	}
}

// DumpFileName is <username>_<serial>_<MMHHDDMMYYYY>.txt with minutes first.
func DumpFileName(msg *models.ChatMessage, loc *time.Location) string {
	created := msg.CreatedAt
	if loc != nil {
		created = created.In(loc)
	}
	username := msg.Username
	if username == "" {
		username = strconv.FormatInt(msg.UserID, 10)
	}
	return fmt.Sprintf("%s_%d_%s.txt", username, msg.SerialNum, created.Format("041502012006"))
}

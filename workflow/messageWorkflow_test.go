package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/llm"
	"bitbucket.org/mmdatafocus/agromate_backend/models"
	"bitbucket.org/mmdatafocus/agromate_backend/resolution"
	"github.com/google/go-cmp/cmp"
)

func aliceInput() models.NewChatMessageInput {
	return models.NewChatMessageInput{
		Username:    "alice",
		UserID:      42,
		ChatID:      -100,
		MessageID:   7,
		MessageText: "Отд 1 пахота пшеница -5 га, 100 кг",
		CreatedAt:   time.Date(2025, 7, 15, 9, 30, 0, 0, time.UTC),
		Status:      "processed",
	}
}

func newTestWorkflow(store *memoryStore, verdict llm.Classification, ex *fakeExtractor, comp *fakeCompiler, relay *fakeRelay, sched Scheduler) *MessageWorkflow {
	w := NewMessageWorkflow(store, fixedClassifier(verdict), ex, comp, relay, sched, quietLogger())
	w.Location = time.UTC
	return w
}

func reportVerdict() llm.Classification {
	return llm.Classification{Kind: models.ClassificationFieldReport}
}

func TestIngestFaultedClassificationStaysProcessing(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	relay := &fakeRelay{}
	sched := &heldScheduler{}
	w := newTestWorkflow(store, llm.Classification{Err: errBoom}, &fakeExtractor{}, &fakeCompiler{}, relay, sched)

	msg, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if msg.Status != models.MessageStatusProcessing {
		t.Fatalf("expected processing, got %s", msg.Status)
	}
	if got := store.message(msg.ID).Status; got != models.MessageStatusProcessing {
		t.Fatalf("stored status %s, want processing", got)
	}
	if len(sched.tasks) != 1 {
		t.Fatalf("expected one background task, got %d", len(sched.tasks))
	}
	if len(relay.notices) != 0 {
		t.Fatalf("no notification expected before a terminal status, got %v", relay.notices)
	}
}

func TestIngestNonReportMarksSpamAndNotifiesOnce(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	relay := &fakeRelay{}
	sched := &heldScheduler{}
	verdict := llm.Classification{Kind: models.ClassificationNonReport}
	w := newTestWorkflow(store, verdict, &fakeExtractor{}, &fakeCompiler{}, relay, sched)

	msg, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if msg.Status != models.MessageStatusSpam {
		t.Fatalf("expected spam, got %s", msg.Status)
	}
	if len(sched.tasks) != 0 {
		t.Fatalf("spam must not reach the background stage")
	}
	want := []relayCall{{chatID: -100, threadID: 7, value: "spam"}}
	if diff := cmp.Diff(want, relay.notices, cmp.AllowUnexported(relayCall{})); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	relay := &fakeRelay{}
	comp := &fakeCompiler{}
	ex := &fakeExtractor{entries: []resolution.ExtractedEntry{{
		Department: resolution.Label{Value: "Отд 1"},
		Operation:  resolution.Label{Value: "Пахота"},
		Crop:       resolution.Label{Value: "пшеница"},
		AreaDay:    ptrFloat(-5),
		YieldKgDay: ptrFloat(100),
	}}}
	w := newTestWorkflow(store, reportVerdict(), ex, comp, relay, inlineScheduler{})

	msg, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	wantHistory := []models.MessageStatus{models.MessageStatusProcessing, models.MessageStatusProcessed}
	if diff := cmp.Diff(wantHistory, store.statuses(msg.ID)); diff != "" {
		t.Fatalf("status history mismatch (-want +got):\n%s", diff)
	}
	stored := store.message(msg.ID)
	if stored.StatusText == nil || *stored.StatusText != "report entries: 1" {
		t.Fatalf("unexpected status text %v", stored.StatusText)
	}

	if len(store.reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(store.reports))
	}
	rep := store.reports[0]
	if rep.DayArea != 1 {
		t.Fatalf("day_area = %v, want 1", rep.DayArea)
	}
	if rep.DayYield == nil || *rep.DayYield != 1.0 {
		t.Fatalf("day_yield = %v, want 1.0", rep.DayYield)
	}
	if rep.Note != nil || rep.IsPlaceholder {
		t.Fatalf("fully resolved entry should carry no note or placeholder: %+v", rep)
	}
	if !rep.WorkedOn.Equal(time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("worked_on = %v", rep.WorkedOn)
	}

	if len(comp.compiles) != 1 {
		t.Fatalf("expected one compile, got %d", len(comp.compiles))
	}
	row := comp.compiles[0].entries[0]
	if row.Department.Text() != "Отделение 1" || row.Crop.Text() != "Пшеница озимая" {
		t.Fatalf("sheet row should print canonical names, got %q / %q", row.Department.Text(), row.Crop.Text())
	}

	wantNotices := []relayCall{{chatID: -100, threadID: 7, value: "processed"}}
	if diff := cmp.Diff(wantNotices, relay.notices, cmp.AllowUnexported(relayCall{})); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineExtractorFailureMarksFailed(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	relay := &fakeRelay{}
	w := newTestWorkflow(store, reportVerdict(), &fakeExtractor{err: errBoom}, &fakeCompiler{}, relay, inlineScheduler{})
	w.ReplyOnFailed = true

	msg, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	stored := store.message(msg.ID)
	if stored.Status != models.MessageStatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.StatusText == nil || !strings.Contains(*stored.StatusText, "boom") {
		t.Fatalf("status text should describe the error, got %v", stored.StatusText)
	}
	if len(relay.notices) != 1 || relay.notices[0].value != "failed" {
		t.Fatalf("expected exactly one failed notification, got %v", relay.notices)
	}
	if len(relay.replies) != 1 || !strings.Contains(relay.replies[0].value, "boom") {
		t.Fatalf("expected one failure reply, got %v", relay.replies)
	}
}

func TestPipelinePanicMarksFailed(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	w := newTestWorkflow(store, reportVerdict(), &fakeExtractor{panics: true}, &fakeCompiler{}, &fakeRelay{}, inlineScheduler{})

	msg, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := store.message(msg.ID).Status; got != models.MessageStatusFailed {
		t.Fatalf("expected failed after panic, got %s", got)
	}
}

func TestPipelineCompileFailureKeepsReports(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	ex := &fakeExtractor{entries: []resolution.ExtractedEntry{{
		Department: resolution.Label{Value: "Отделение 1"},
		Operation:  resolution.Label{Value: "Пахота"},
		Crop:       resolution.Label{Value: "Пшеница озимая"},
	}}}
	w := newTestWorkflow(store, reportVerdict(), ex, &fakeCompiler{err: errBoom}, &fakeRelay{}, inlineScheduler{})

	msg, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := store.message(msg.ID).Status; got != models.MessageStatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	if len(store.reports) != 1 {
		t.Fatalf("reports should stay persisted, got %d", len(store.reports))
	}
}

func TestNotifyFailureDoesNotChangeStatus(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	relay := &fakeRelay{err: errBoom}
	w := newTestWorkflow(store, reportVerdict(), &fakeExtractor{}, &fakeCompiler{}, relay, inlineScheduler{})

	msg, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	stored := store.message(msg.ID)
	if stored.Status != models.MessageStatusProcessed {
		t.Fatalf("expected processed, got %s", stored.Status)
	}
	if stored.StatusText == nil || *stored.StatusText != "report entries: 0" {
		t.Fatalf("unexpected status text %v", stored.StatusText)
	}
	if len(relay.notices) != 1 {
		t.Fatalf("notification should be attempted exactly once, got %d", len(relay.notices))
	}
}

func TestPipelineUnresolvedEntryUsesPlaceholders(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	comp := &fakeCompiler{}
	ex := &fakeExtractor{entries: []resolution.ExtractedEntry{{
		Department: resolution.Label{Value: "Отделение 9"},
		Operation:  resolution.Label{Value: "Боронование", Status: resolution.LabelPredict},
		Crop:       resolution.Label{Value: "рожь", Status: resolution.LabelRaw},
	}}}
	w := newTestWorkflow(store, reportVerdict(), ex, comp, &fakeRelay{}, inlineScheduler{})

	if _, err := w.Ingest(context.Background(), aliceInput()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	rep := store.reports[0]
	if !rep.IsPlaceholder || rep.DepartmentID == nil || *rep.DepartmentID != 1 {
		t.Fatalf("expected placeholder ids, got %+v", rep)
	}
	if rep.Note == nil {
		t.Fatalf("expected a note for unresolved labels")
	}
	row := comp.compiles[0].entries[0]
	if row.Department.Resolved || row.Department.Text() != "Отделение 9" {
		t.Fatalf("placeholder row should print the submitted text, got %+v", row.Department)
	}
	if row.Crop.Text() != "рожь" {
		t.Fatalf("raw crop should be printed, got %q", row.Crop.Text())
	}
}

func TestDumpFileName(t *testing.T) {
	msg := &models.ChatMessage{
		Username:  "alice",
		UserID:    42,
		SerialNum: 3,
		CreatedAt: time.Date(2025, 7, 15, 9, 5, 0, 0, time.UTC),
	}
	loc := time.FixedZone("MSK", 3*60*60)
	if got, want := DumpFileName(msg, loc), "alice_3_051215072025.txt"; got != want {
		t.Fatalf("DumpFileName = %q, want %q", got, want)
	}
	msg.Username = ""
	if got, want := DumpFileName(msg, time.UTC), "42_3_050915072025.txt"; got != want {
		t.Fatalf("DumpFileName = %q, want %q", got, want)
	}
}

func TestIngestDuplicateDeliveryIsNotReprocessed(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	sched := &heldScheduler{}
	w := newTestWorkflow(store, reportVerdict(), &fakeExtractor{}, &fakeCompiler{}, &fakeRelay{}, sched)

	first, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	second, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("duplicate Ingest: %v", err)
	}
	if second.ID != first.ID || second.Status != models.MessageStatusProcessing {
		t.Fatalf("expected the stored message back, got %+v", second)
	}
	if len(sched.tasks) != 1 {
		t.Fatalf("duplicate must not schedule a second pipeline, got %d tasks", len(sched.tasks))
	}
}

func TestIngestRedeliveryResumesMessageLeftInNew(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	store.transitionErrs = []error{errBoom}
	sched := &heldScheduler{}
	w := newTestWorkflow(store, reportVerdict(), &fakeExtractor{}, &fakeCompiler{}, &fakeRelay{}, sched)

	if _, err := w.Ingest(context.Background(), aliceInput()); !errors.Is(err, errBoom) {
		t.Fatalf("expected the transition failure to reach the caller, got %v", err)
	}
	stored, err := store.FindMessage(context.Background(), -100, 7)
	if err != nil || stored.Status != models.MessageStatusNew {
		t.Fatalf("expected the row to stay in new, got %+v, %v", stored, err)
	}
	if len(sched.tasks) != 0 {
		t.Fatalf("nothing should be scheduled after a failed transition")
	}

	msg, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("redelivered Ingest: %v", err)
	}
	if msg.ID != stored.ID || msg.Status != models.MessageStatusProcessing {
		t.Fatalf("expected the stored message to move to processing, got %+v", msg)
	}
	if len(sched.tasks) != 1 {
		t.Fatalf("expected one pipeline after redelivery, got %d", len(sched.tasks))
	}

	if _, err := w.Ingest(context.Background(), aliceInput()); err != nil {
		t.Fatalf("third delivery: %v", err)
	}
	if len(sched.tasks) != 1 {
		t.Fatalf("a message past new must not be scheduled again, got %d tasks", len(sched.tasks))
	}
}

func TestIngestRedeliveryResumesSpamClassification(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	store.transitionErrs = []error{errBoom}
	relay := &fakeRelay{}
	verdict := llm.Classification{Kind: models.ClassificationNonReport}
	w := newTestWorkflow(store, verdict, &fakeExtractor{}, &fakeCompiler{}, relay, &heldScheduler{})

	if _, err := w.Ingest(context.Background(), aliceInput()); err == nil {
		t.Fatalf("expected first delivery to fail")
	}
	msg, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("redelivered Ingest: %v", err)
	}
	if msg.Status != models.MessageStatusSpam {
		t.Fatalf("expected spam, got %s", msg.Status)
	}
	if len(relay.notices) != 1 {
		t.Fatalf("expected exactly one notification, got %v", relay.notices)
	}
}

func TestIngestLostTransitionRaceReturnsStoredMessage(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	sched := &heldScheduler{}
	w := newTestWorkflow(store, reportVerdict(), &fakeExtractor{}, &fakeCompiler{}, &fakeRelay{}, sched)

	first, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	// Another delivery won the compare-and-set between our insert and transition.
	msg := &models.ChatMessage{ID: first.ID, ChatID: first.ChatID, MessageID: first.MessageID, Status: models.MessageStatusNew}
	err = w.transition(context.Background(), msg, models.MessageStatusProcessing, nil)
	got, settleErr := w.settled(context.Background(), msg, err)
	if settleErr != nil {
		t.Fatalf("settled: %v", settleErr)
	}
	if got.Status != models.MessageStatusProcessing || got.ID != first.ID {
		t.Fatalf("expected the stored message, got %+v", got)
	}
}

func TestIngestSchedulerRefusalFailsMessage(t *testing.T) {
	store := newMemoryStore(testSnapshot())
	relay := &fakeRelay{}
	sched := &heldScheduler{err: context.DeadlineExceeded}
	w := newTestWorkflow(store, reportVerdict(), &fakeExtractor{}, &fakeCompiler{}, relay, sched)

	msg, err := w.Ingest(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if msg.Status != models.MessageStatusFailed {
		t.Fatalf("expected failed, got %s", msg.Status)
	}
	if msg.StatusText == nil || !strings.HasPrefix(*msg.StatusText, "not scheduled: ") {
		t.Fatalf("unexpected status text %v", msg.StatusText)
	}
	want := []models.MessageStatus{models.MessageStatusProcessing, models.MessageStatusFailed}
	if diff := cmp.Diff(want, store.statuses(msg.ID)); diff != "" {
		t.Fatalf("status history mismatch (-want +got):\n%s", diff)
	}
	if len(relay.notices) != 1 || relay.notices[0].value != "failed" {
		t.Fatalf("expected one failed notification, got %v", relay.notices)
	}
}

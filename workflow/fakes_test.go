package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/llm"
	"bitbucket.org/mmdatafocus/agromate_backend/models"
	"bitbucket.org/mmdatafocus/agromate_backend/resolution"
	"bitbucket.org/mmdatafocus/agromate_backend/spreadsheet"
	"bitbucket.org/mmdatafocus/agromate_backend/utils"
)

type memoryStore struct {
	mu       sync.Mutex
	nextID   uint
	messages map[uint]*models.ChatMessage
	history  map[uint][]models.MessageStatus
	reports  []*models.Report
	snap     *models.DictionarySnapshot

	saveErr error
	// transitionErrs are returned, in order, by the next TransitionStatus calls.
	transitionErrs []error
}

func newMemoryStore(snap *models.DictionarySnapshot) *memoryStore {
	return &memoryStore{
		messages: map[uint]*models.ChatMessage{},
		history:  map[uint][]models.MessageStatus{},
		snap:     snap,
	}
}

func (s *memoryStore) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ChatID == msg.ChatID && m.MessageID == msg.MessageID {
			return fmt.Errorf("create chat message: %w", models.ErrDuplicateMessage)
		}
	}
	s.nextID++
	msg.ID = s.nextID
	msg.SerialNum = int(s.nextID)
	msg.Status = models.MessageStatusNew
	stored := *msg
	s.messages[msg.ID] = &stored
	return nil
}

func (s *memoryStore) FindMessage(ctx context.Context, chatID, messageID int64) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ChatID == chatID && m.MessageID == messageID {
			found := *m
			return &found, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (s *memoryStore) TransitionStatus(ctx context.Context, id uint, from, to models.MessageStatus, text *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.transitionErrs) > 0 {
		err := s.transitionErrs[0]
		s.transitionErrs = s.transitionErrs[1:]
		return err
	}
	msg, ok := s.messages[id]
	if !ok {
		return utils.ErrorRecordNotFound
	}
	if msg.Status != from || !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, msg.Status, to)
	}
	msg.Status = to
	msg.StatusText = text
	s.history[id] = append(s.history[id], to)
	return nil
}

func (s *memoryStore) LoadDictionaries(ctx context.Context) (*models.DictionarySnapshot, error) {
	return s.snap, nil
}

func (s *memoryStore) SaveReports(ctx context.Context, reports []*models.Report) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range reports {
		r.ID = uint(len(s.reports) + 1)
		s.reports = append(s.reports, r)
	}
	return nil
}

func (s *memoryStore) ReportsOn(ctx context.Context, date time.Time) ([]*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Report
	for _, r := range s.reports {
		if r.WorkedOn.Equal(date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) message(id uint) models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.messages[id]
}

func (s *memoryStore) statuses(id uint) []models.MessageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MessageStatus(nil), s.history[id]...)
}

type fixedClassifier llm.Classification

func (c fixedClassifier) Classify(ctx context.Context, text string) llm.Classification {
	return llm.Classification(c)
}

type fakeExtractor struct {
	entries []resolution.ExtractedEntry
	err     error
	panics  bool
}

func (e *fakeExtractor) Extract(ctx context.Context, text string, snap resolution.Snapshot) ([]resolution.ExtractedEntry, error) {
	if e.panics {
		panic("extractor exploded")
	}
	return e.entries, e.err
}

type compileCall struct {
	date    time.Time
	entries []spreadsheet.Entry
}

type fakeCompiler struct {
	mu       sync.Mutex
	compiles []compileCall
	builds   []compileCall
	err      error
}

func (c *fakeCompiler) Compile(ctx context.Context, date time.Time, entries []spreadsheet.Entry) (utils.ArtifactRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compiles = append(c.compiles, compileCall{date: date, entries: entries})
	if c.err != nil {
		return utils.ArtifactRef{}, c.err
	}
	return utils.ArtifactRef{ID: "hot", URL: "https://example.test/hot"}, nil
}

func (c *fakeCompiler) Build(ctx context.Context, date time.Time, entries []spreadsheet.Entry) (utils.ArtifactRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builds = append(c.builds, compileCall{date: date, entries: entries})
	if c.err != nil {
		return utils.ArtifactRef{}, c.err
	}
	return utils.ArtifactRef{ID: "daily", URL: "https://example.test/daily"}, nil
}

type relayCall struct {
	chatID, threadID int64
	value            string
}

type fakeRelay struct {
	mu      sync.Mutex
	notices []relayCall
	replies []relayCall
	err     error
}

func (r *fakeRelay) Notify(ctx context.Context, chatID, threadID int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, relayCall{chatID, threadID, status})
	return r.err
}

func (r *fakeRelay) Reply(ctx context.Context, chatID, threadID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, relayCall{chatID, threadID, text})
	return r.err
}

// inlineScheduler runs tasks on the caller so tests observe the final state.
type inlineScheduler struct{}

func (inlineScheduler) Go(ctx context.Context, name string, task Task) error {
	_ = task(ctx)
	return nil
}

// heldScheduler queues tasks without running them. With err set it refuses them.
type heldScheduler struct {
	tasks []Task
	err   error
}

func (s *heldScheduler) Go(ctx context.Context, name string, task Task) error {
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, task)
	return nil
}

type fakeSummarizer struct {
	digest string
	text   string
	err    error
}

func (s *fakeSummarizer) Summarize(ctx context.Context, digest string) (string, error) {
	s.digest = digest
	return s.text, s.err
}

var errBoom = errors.New("boom")

func ptrFloat(v float64) *float64 { return &v }

func testSnapshot() *models.DictionarySnapshot {
	return &models.DictionarySnapshot{
		Departments: []models.Department{{ID: 1, Subdivision: "Отделение 1", ProductionUnit: "ПУ Север", Aliases: "Отд 1, Отд1"}},
		Operations:  []models.Operation{{ID: 2, OperationName: "Пахота"}},
		Crops:       []models.Crop{{ID: 3, CropName: "Пшеница озимая", Aliases: "пшеница"}},
	}
}

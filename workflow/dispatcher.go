package workflow

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/utils"
	"github.com/sirupsen/logrus"
)

// Task is one unit of background work.
type Task func(ctx context.Context) error

// Dispatcher runs background tasks with at most limit in flight and at most
// queue more waiting for a slot. A task that fails or panics is logged and
// never affects the caller or other tasks.
type Dispatcher struct {
	Logger      *logrus.Logger
	TaskTimeout time.Duration

	slots    chan struct{}
	admitted chan struct{}
	wg       sync.WaitGroup
}

func NewDispatcher(limit, queue int, taskTimeout time.Duration, logger *logrus.Logger) *Dispatcher {
	if limit <= 0 {
		limit = 1
	}
	if queue < 0 {
		queue = 0
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		Logger:      logger,
		TaskTimeout: taskTimeout,
		slots:       make(chan struct{}, limit),
		admitted:    make(chan struct{}, limit+queue),
	}
}

// Go admits task and runs it in the background. When every slot is busy and
// the queue is full the caller suspends until a place frees up or ctx is done,
// in which case the task is not run and ctx.Err() is returned. ctx bounds only
// the admission: the task keeps ctx values but not its cancellation.
func (d *Dispatcher) Go(ctx context.Context, name string, task Task) error {
	select {
	case d.admitted <- struct{}{}:
	case <-ctx.Done():
		d.Logger.WithFields(taskFields(ctx, "Dispatcher.Go", name)).Warn("task rejected, queue full: " + ctx.Err().Error())
		return ctx.Err()
	}

	taskCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.admitted }()
		_ = d.Run(taskCtx, name, task)
	}()
	return nil
}

// Queued is the number of admitted tasks still waiting for a slot.
func (d *Dispatcher) Queued() int {
	if n := len(d.admitted) - len(d.slots); n > 0 {
		return n
	}
	return 0
}

// Run blocks until a slot is free, then runs task on the calling goroutine.
// The returned error is for the supervisor; it has already been logged.
func (d *Dispatcher) Run(ctx context.Context, name string, task Task) error {
	select {
	case d.slots <- struct{}{}:
	case <-ctx.Done():
		d.Logger.WithFields(taskFields(ctx, "Dispatcher.Run", name)).Warn("task dropped before admission: " + ctx.Err().Error())
		return ctx.Err()
	}
	defer func() { <-d.slots }()

	return d.execute(ctx, name, task)
}

func (d *Dispatcher) execute(ctx context.Context, name string, task Task) (err error) {
	if d.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.TaskTimeout)
		defer cancel()
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
			fields := taskFields(ctx, "Dispatcher.execute", name)
			fields["stack"] = string(debug.Stack())
			d.Logger.WithFields(fields).Error(err.Error())
			return
		}
		if err != nil {
			fields := taskFields(ctx, "Dispatcher.execute", name)
			fields["duration"] = time.Since(started).String()
			d.Logger.WithFields(fields).Error("task failed: " + err.Error())
		}
	}()

	return task(ctx)
}

func taskFields(ctx context.Context, field, name string) logrus.Fields {
	fields := logrus.Fields{"field": field, "task": name}
	if id, ok := utils.GetMessageIdFromContext(ctx); ok {
		fields["message_id"] = id
	}
	if id, ok := utils.GetSubmitterIdFromContext(ctx); ok {
		fields["submitter_id"] = id
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = cid
	}
	return fields
}

// InFlight is the number of tasks currently holding a slot.
func (d *Dispatcher) InFlight() int {
	return len(d.slots)
}

// Wait blocks until every task scheduled with Go has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

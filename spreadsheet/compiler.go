// Package spreadsheet compiles report entries into per-day xlsx artifacts.
package spreadsheet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/utils"
	"github.com/sirupsen/logrus"
)

// hotState is the single open workbook of the compiler.
type hotState struct {
	date       time.Time
	book       *workbook
	nextRow    int
	artifactID string
	name       string
}

// Compiler appends entries to the workbook of the current reporting date and
// keeps exactly one remote artifact per date: the first compile uploads, later
// compiles for the same date overwrite it. Switching dates drops the previous
// workbook. Calls are serialized.
type Compiler struct {
	Template []byte
	Store    utils.ArtifactStore
	TeamName string
	Logger   *logrus.Logger
	Now      func() time.Time

	mu  sync.Mutex
	hot *hotState
}

func NewCompiler(templatePath string, store utils.ArtifactStore, teamName string, logger *logrus.Logger) (*Compiler, error) {
	template, err := LoadTemplate(templatePath)
	if err != nil {
		return nil, err
	}
	return &Compiler{
		Template: template,
		Store:    store,
		TeamName: teamName,
		Logger:   logger,
		Now:      time.Now,
	}, nil
}

// Compile folds entries into the workbook of reportingDate and pushes it.
func (c *Compiler) Compile(ctx context.Context, reportingDate time.Time, entries []Entry) (utils.ArtifactRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hot == nil || !sameDay(c.hot.date, reportingDate) {
		book, err := openWorkbook(c.Template, reportingDate)
		if err != nil {
			return utils.ArtifactRef{}, err
		}
		if c.hot != nil {
			c.hot.book.close()
		}
		c.hot = &hotState{
			date:    reportingDate,
			book:    book,
			nextRow: templateRow,
			name:    fmt.Sprintf("%s_%s.xlsx", c.now().Format("1502012006"), c.TeamName),
		}
	}

	hot := c.hot
	next, err := hot.book.writeRows(hot.nextRow, entries)
	hot.nextRow = next
	if err != nil {
		return utils.ArtifactRef{}, fmt.Errorf("write rows: %w", err)
	}

	data, err := hot.book.bytes()
	if err != nil {
		return utils.ArtifactRef{}, fmt.Errorf("serialize workbook: %w", err)
	}

	var ref utils.ArtifactRef
	if hot.artifactID == "" {
		ref, err = c.Store.Upload(ctx, hot.name, data)
		if err != nil {
			return utils.ArtifactRef{}, fmt.Errorf("upload %s: %w", hot.name, err)
		}
		hot.artifactID = ref.ID
	} else {
		ref, err = c.Store.Overwrite(ctx, hot.artifactID, hot.name, data)
		if err != nil {
			return utils.ArtifactRef{}, fmt.Errorf("overwrite %s: %w", hot.artifactID, err)
		}
	}

	if c.Logger != nil {
		c.Logger.WithFields(logrus.Fields{
			"field":       "Compiler.Compile",
			"report_on":   reportingDate.Format("2006-01-02"),
			"rows":        len(entries),
			"next_row":    hot.nextRow,
			"artifact_id": hot.artifactID,
		}).Info("report workbook pushed")
	}
	return ref, nil
}

// Build writes all entries of a date into a fresh workbook and uploads it as a
// standalone artifact. The hot workbook is not touched.
func (c *Compiler) Build(ctx context.Context, reportingDate time.Time, entries []Entry) (utils.ArtifactRef, error) {
	book, err := openWorkbook(c.Template, reportingDate)
	if err != nil {
		return utils.ArtifactRef{}, err
	}
	defer book.close()

	if _, err := book.writeRows(templateRow, entries); err != nil {
		return utils.ArtifactRef{}, fmt.Errorf("write rows: %w", err)
	}
	data, err := book.bytes()
	if err != nil {
		return utils.ArtifactRef{}, fmt.Errorf("serialize workbook: %w", err)
	}
	name := fmt.Sprintf("%s.xlsx", reportingDate.Format("02012006"))
	return c.Store.Upload(ctx, name, data)
}

// HotDate returns the reporting date currently held open, if any.
func (c *Compiler) HotDate() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hot == nil {
		return time.Time{}, false
	}
	return c.hot.date, true
}

func (c *Compiler) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

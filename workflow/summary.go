package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/config"
	"bitbucket.org/mmdatafocus/agromate_backend/models"
	"bitbucket.org/mmdatafocus/agromate_backend/resolution"
	"github.com/sirupsen/logrus"
)

const unknownDepartment = "unknown department"

type Summarizer interface {
	Summarize(ctx context.Context, digest string) (string, error)
}

// DailyReport is the answer to a report-on-demand request.
type DailyReport struct {
	CreatedOn string `json:"created_on"`
	URL       string `json:"url"`
	Summary   string `json:"summary"`
}

// Reporter rebuilds a full day workbook from persisted reports.
type Reporter struct {
	Store      Store
	Compiler   ReportCompiler
	Summarizer Summarizer
	Logger     *logrus.Logger
}

func NewReporter(store Store, compiler ReportCompiler, summarizer Summarizer, logger *logrus.Logger) *Reporter {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Reporter{Store: store, Compiler: compiler, Summarizer: summarizer, Logger: logger}
}

// BuildDailyReport uploads a standalone workbook with every entry of date and
// summarizes it. The hot workbook of the incremental compiler is left alone.
func (r *Reporter) BuildDailyReport(ctx context.Context, date time.Time) (*DailyReport, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	reports, err := r.Store.ReportsOn(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	snap, err := r.Store.LoadDictionaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dictionaries: %w", err)
	}

	ref, err := r.Compiler.Build(ctx, day, sheetEntries(reports, snap))
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}

	stats := summarize(reports, snap)
	text := stats.String()
	if r.Summarizer != nil && stats.Problematic > 0 {
		narrative, err := r.Summarizer.Summarize(ctx, stats.digest)
		if err != nil {
			r.Logger.WithFields(logrus.Fields{
				"field":     "Reporter.BuildDailyReport",
				"report_on": day.Format("2006-01-02"),
			}).Warn("summary narrative failed: " + err.Error())
			narrative = "Summary unavailable: " + err.Error()
		}
		text += "\n\n" + strings.TrimSpace(narrative)
	}

	r.Logger.WithFields(logrus.Fields{
		"field":       "Reporter.BuildDailyReport",
		"report_on":   day.Format("2006-01-02"),
		"entries":     stats.Total,
		"artifact_id": ref.ID,
	}).Info("daily report built")

	return &DailyReport{
		CreatedOn: day.Format("2006-01-02"),
		URL:       ref.URL,
		Summary:   text,
	}, nil
}

type departmentStat struct {
	Name        string
	Total       int
	Problematic int
}

type dayStats struct {
	Total       int
	Problematic int
	Departments []departmentStat
	digest      string
}

func (s dayStats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entries: %d, with problems: %d", s.Total, s.Problematic)
	for _, d := range s.Departments {
		fmt.Fprintf(&b, "\n- %s: %d entries, %d with problems", d.Name, d.Total, d.Problematic)
	}
	return b.String()
}

// summarize counts entries per department. An entry is problematic when it
// carries a note. The digest lists problematic entries for the narrative.
func summarize(reports []*models.Report, snap *models.DictionarySnapshot) dayStats {
	byName := map[string]*departmentStat{}
	stats := dayStats{Total: len(reports)}
	var digest strings.Builder

	for _, r := range reports {
		rows := sheetEntries([]*models.Report{r}, snap)
		dept := rows[0].Department.Text()
		if dept == "" {
			dept = unknownDepartment
		}
		d, ok := byName[dept]
		if !ok {
			d = &departmentStat{Name: dept}
			byName[dept] = d
		}
		d.Total++

		if r.Note == nil {
			continue
		}
		d.Problematic++
		stats.Problematic++
		fmt.Fprintf(&digest, "%d. Department: %s\n   Operation: %s\n   Crop: %s\n   Day area: %g ha\n",
			stats.Problematic, dept, orUnknown(rows[0].Operation.Text()), orUnknown(rows[0].Crop.Text()), r.DayArea)
		if r.CumulativeArea != nil {
			fmt.Fprintf(&digest, "   Total area: %g ha\n", *r.CumulativeArea)
		}
		if r.DayYield != nil {
			fmt.Fprintf(&digest, "   Day yield: %g c\n", *r.DayYield)
		}
		fmt.Fprintf(&digest, "   Problem: %s\n\n", *r.Note)
	}

	for _, d := range byName {
		stats.Departments = append(stats.Departments, *d)
	}
	sort.Slice(stats.Departments, func(i, j int) bool {
		return stats.Departments[i].Name < stats.Departments[j].Name
	})
	stats.digest = stats.String() + "\n\n" + digest.String()
	return stats
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// ReportDate parses YYYY-MM-DD, defaulting to today in loc.
func ReportDate(value string, now time.Time, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return resolution.ReportingDate(now, loc), nil
	}
	d, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return d, nil
}

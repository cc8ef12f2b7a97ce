package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"bitbucket.org/mmdatafocus/agromate_backend/config"
	"bitbucket.org/mmdatafocus/agromate_backend/resolution"
	"bitbucket.org/mmdatafocus/agromate_backend/utils"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// Extract turns a report message into entries. In AUTO mode labels come back bare
// and are restricted to dictionary names; in ANNOTATED mode each label carries
// its own valid/predict/raw tag.
func (c *Client) Extract(ctx context.Context, text string, snap resolution.Snapshot) ([]resolution.ExtractedEntry, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	data := promptData{
		Message:     text,
		Examples:    c.prompts.ExtractionExamples,
		Departments: names(snap.Departments),
		Operations:  names(snap.Operations),
		Crops:       names(snap.Crops),
	}
	annotated := c.mode == config.ExtractionModeAnnotated

	promptName := promptAuto
	schema := autoSchema(data)
	if annotated {
		promptName = promptAnnotated
		schema = annotatedSchema()
	}
	system, err := c.prompts.render(promptName, data)
	if err != nil {
		return nil, err
	}

	raw, err := c.gen.Generate(ctx, system, text, schema)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	entries, err := parseEntries(raw, annotated)
	if err != nil {
		return nil, err
	}
	c.logger.WithFields(logrus.Fields{
		"field":   "llm.Extract",
		"mode":    c.mode,
		"message": preview(text),
		"entries": len(entries),
	}).Info("entries extracted")
	return entries, nil
}

func names(dict []resolution.Candidate) []string {
	out := make([]string, 0, len(dict))
	for _, c := range dict {
		if n := c.Canonical(); n != "" {
			out = append(out, n)
		}
	}
	return out
}

var (
	nullableNumber = &genai.Schema{Type: genai.TypeNumber, Nullable: genai.Ptr(true)}
	nullableString = &genai.Schema{Type: genai.TypeString, Nullable: genai.Ptr(true)}
)

func labelSchema(values []string) *genai.Schema {
	s := &genai.Schema{Type: genai.TypeString}
	if len(values) > 0 {
		s.Enum = values
	}
	return s
}

func entriesSchema(entry *genai.Schema) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"entries": {Type: genai.TypeArray, Items: entry},
		},
		Required: []string{"entries"},
	}
}

func autoSchema(data promptData) *genai.Schema {
	return entriesSchema(&genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"date":                 nullableString,
			"department_name":      labelSchema(data.Departments),
			"operation":            labelSchema(data.Operations),
			"crop":                 labelSchema(data.Crops),
			"processed_area_day":   {Type: genai.TypeNumber},
			"processed_area_total": nullableNumber,
			"yield_kg_day":         nullableNumber,
			"yield_kg_total":       nullableNumber,
		},
		Required: []string{"department_name", "operation", "crop", "processed_area_day"},
	})
}

func annotatedSchema() *genai.Schema {
	label := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"status": {
				Type: genai.TypeString,
				Enum: []string{string(resolution.LabelValid), string(resolution.LabelPredict), string(resolution.LabelRaw)},
			},
			"value":       {Type: genai.TypeString},
			"explanation": nullableString,
		},
		Required: []string{"status", "value"},
	}
	return entriesSchema(&genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"date":                 nullableString,
			"department_name":      label,
			"operation":            label,
			"crop":                 label,
			"processed_area_day":   {Type: genai.TypeNumber},
			"processed_area_total": nullableNumber,
			"yield_kg_day":         nullableNumber,
			"yield_kg_total":       nullableNumber,
		},
		Required: []string{"department_name", "operation", "crop", "processed_area_day"},
	})
}

type wireEntry struct {
	Date         *string         `json:"date"`
	Department   json.RawMessage `json:"department_name"`
	Operation    json.RawMessage `json:"operation"`
	Crop         json.RawMessage `json:"crop"`
	AreaDay      *float64        `json:"processed_area_day"`
	AreaTotal    *float64        `json:"processed_area_total"`
	YieldKgDay   *float64        `json:"yield_kg_day"`
	YieldKgTotal *float64        `json:"yield_kg_total"`
}

type wireLabel struct {
	Status      string  `json:"status"`
	Value       string  `json:"value"`
	Explanation *string `json:"explanation"`
}

func parseEntries(raw string, annotated bool) ([]resolution.ExtractedEntry, error) {
	var wire struct {
		Entries []wireEntry `json:"entries"`
	}
	if err := json.Unmarshal([]byte(stripFence(raw)), &wire); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}
	out := make([]resolution.ExtractedEntry, 0, len(wire.Entries))
	for i, w := range wire.Entries {
		var e resolution.ExtractedEntry
		var err error
		if e.Department, err = parseLabel(w.Department, annotated); err != nil {
			return nil, fmt.Errorf("entry %d department: %w", i, err)
		}
		if e.Operation, err = parseLabel(w.Operation, annotated); err != nil {
			return nil, fmt.Errorf("entry %d operation: %w", i, err)
		}
		if e.Crop, err = parseLabel(w.Crop, annotated); err != nil {
			return nil, fmt.Errorf("entry %d crop: %w", i, err)
		}
		e.Date = w.Date
		e.AreaDay = w.AreaDay
		e.AreaTotal = w.AreaTotal
		e.YieldKgDay = w.YieldKgDay
		e.YieldKgTotal = w.YieldKgTotal
		out = append(out, e)
	}
	return out, nil
}

// parseLabel accepts a bare string in AUTO mode and a {status,value,explanation}
// object in ANNOTATED mode. Values are normalized before lookup.
func parseLabel(raw json.RawMessage, annotated bool) (resolution.Label, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return resolution.Label{}, nil
	}
	if !annotated {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return resolution.Label{}, err
		}
		return resolution.Label{Value: utils.NormalizeLabel(s)}, nil
	}

	var w wireLabel
	if err := json.Unmarshal(raw, &w); err != nil {
		return resolution.Label{}, err
	}
	l := resolution.Label{Value: utils.NormalizeLabel(w.Value)}
	switch resolution.LabelStatus(w.Status) {
	case resolution.LabelValid, resolution.LabelPredict, resolution.LabelRaw:
		l.Status = resolution.LabelStatus(w.Status)
	default:
		// unknown tags are validated by lookup like bare labels
		l.Status = resolution.LabelBare
	}
	if w.Explanation != nil {
		l.Explanation = *w.Explanation
	}
	return l, nil
}

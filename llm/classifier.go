package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/agromate_backend/models"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// Classification is the classifier outcome. Err is set when the model could not
// give a verdict; Kind is then empty and the caller decides how to proceed.
type Classification struct {
	Kind        models.ClassificationKind
	Explanation string
	Err         error
}

func (c Classification) Faulted() bool { return c.Err != nil }

var classificationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"explanation": {Type: genai.TypeString, Description: "Short explanation in Russian."},
		"message_type": {
			Type: genai.TypeString,
			Enum: []string{string(models.ClassificationFieldReport), string(models.ClassificationNonReport)},
		},
	},
	Required: []string{"explanation", "message_type"},
}

// Classify asks the model whether text is a field report. It never returns an error;
// faults are carried in the result.
func (c *Client) Classify(ctx context.Context, text string) Classification {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	system, err := c.prompts.render(promptClassifier, promptData{Examples: c.prompts.ClassifierExamples})
	if err != nil {
		return Classification{Err: err}
	}
	raw, err := c.gen.Generate(ctx, system, text, classificationSchema)
	if err != nil {
		return Classification{Err: fmt.Errorf("classify: %w", err)}
	}
	out := parseClassification(raw)
	c.logger.WithFields(logrus.Fields{
		"field":   "llm.Classify",
		"message": preview(text),
		"kind":    out.Kind,
	}).Debug("message classified")
	return out
}

func parseClassification(raw string) Classification {
	var wire struct {
		Explanation string `json:"explanation"`
		MessageType string `json:"message_type"`
	}
	if err := json.Unmarshal([]byte(stripFence(raw)), &wire); err != nil {
		return Classification{Err: fmt.Errorf("decode classification: %w", err)}
	}
	kind := models.ClassificationKind(strings.TrimSpace(wire.MessageType))
	switch kind {
	case models.ClassificationFieldReport, models.ClassificationNonReport:
		return Classification{Kind: kind, Explanation: wire.Explanation}
	default:
		return Classification{Err: fmt.Errorf("unknown message_type %q", wire.MessageType)}
	}
}

// stripFence drops a ```json fence some models wrap around JSON answers.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

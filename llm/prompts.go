package llm

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Prompts holds the prompt templates, loaded from YAML. Templates use text/template
// syntax and receive a promptData value.
type Prompts struct {
	ClassifierSystem    string `yaml:"classifier_system"`
	ClassifierExamples  string `yaml:"classifier_examples"`
	ExtractionAuto      string `yaml:"extraction_auto"`
	ExtractionAnnotated string `yaml:"extraction_annotated"`
	ExtractionExamples  string `yaml:"extraction_examples"`
	SummarySystem       string `yaml:"summary_system"`

	parsed map[string]*template.Template
}

type promptData struct {
	Message     string
	Examples    string
	Departments []string
	Operations  []string
	Crops       []string
}

const (
	promptClassifier = "classifier_system"
	promptAuto       = "extraction_auto"
	promptAnnotated  = "extraction_annotated"
	promptSummary    = "summary_system"
)

func LoadPrompts(path string) (*Prompts, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	return ParsePrompts(raw)
}

func ParsePrompts(raw []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse prompts yaml: %w", err)
	}
	sources := map[string]string{
		promptClassifier: p.ClassifierSystem,
		promptAuto:       p.ExtractionAuto,
		promptAnnotated:  p.ExtractionAnnotated,
		promptSummary:    p.SummarySystem,
	}
	p.parsed = make(map[string]*template.Template, len(sources))
	for name, src := range sources {
		if strings.TrimSpace(src) == "" {
			return nil, fmt.Errorf("prompt %s is empty", name)
		}
		tpl, err := template.New(name).Funcs(template.FuncMap{"join": strings.Join}).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
		p.parsed[name] = tpl
	}
	return &p, nil
}

func (p *Prompts) render(name string, data promptData) (string, error) {
	tpl, ok := p.parsed[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %s", name)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

package generator

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/faqlearn/pkg/similarity"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// MinTemplateOverlap is the number of shared keywords a template needs to apply.
const MinTemplateOverlap = 2

// Template is a curated answer for a common question shape.
type Template struct {
	ID       string   `yaml:"id"`
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadTemplates parses a YAML template catalog.
func LoadTemplates(data []byte) ([]Template, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	seen := make(map[string]bool, len(file.Templates))
	for i, t := range file.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template %d: missing id", i)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("template %s: duplicate id", t.ID)
		}
		seen[t.ID] = true
		if strings.TrimSpace(t.Answer) == "" {
			return nil, fmt.Errorf("template %s: empty answer", t.ID)
		}
		file.Templates[i].Answer = strings.TrimSpace(t.Answer)
	}
	return file.Templates, nil
}

// DefaultTemplates returns the built-in catalog.
func DefaultTemplates() []Template {
	templates, err := LoadTemplates(defaultTemplatesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded templates: %v", err))
	}
	return templates
}

// matchTemplate returns the template sharing the most keywords with the candidate, provided it
// shares at least MinTemplateOverlap and its category is compatible.
func matchTemplate(templates []Template, keywords []string, category string) *Template {
	var (
		best      *Template
		bestScore int
	)
	for i := range templates {
		t := &templates[i]
		if category != "" && t.Category != "" && !strings.EqualFold(category, t.Category) {
			continue
		}
		overlap := similarity.KeywordOverlap(t.Keywords, keywords)
		if overlap >= MinTemplateOverlap && overlap > bestScore {
			best, bestScore = t, overlap
		}
	}
	return best
}

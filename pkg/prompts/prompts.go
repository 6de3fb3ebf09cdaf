// Package prompts loads the named prompt templates and renders them with
// {placeholder} substitution.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template names used by the storyteller.
const (
	CreateScene    = "create_scene"
	SelectScene    = "select_scene"
	RefineScene    = "refine_scene"
	VisualizeScene = "visualize_scene"
	AddAction      = "add_action"
	RefineOutcome  = "refine_outcome"
	EndScene       = "end_scene"
	SelectSummary  = "select_summary"
	RefineSummary  = "refine_summary"
)

// Required lists every template a pack must define.
var Required = []string{
	CreateScene, SelectScene, RefineScene, VisualizeScene,
	AddAction, RefineOutcome,
	EndScene, SelectSummary, RefineSummary,
}

//go:embed prompts.yaml
var defaultPack []byte

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Template is one named prompt.
type Template struct {
	Placeholders []string `yaml:"placeholders"`
	Text         string   `yaml:"template"`
}

// Pack is a versioned set of templates.
type Pack struct {
	Version   int                 `yaml:"version"`
	Templates map[string]Template `yaml:"templates"`
}

// Default returns the pack compiled into the binary.
func Default() (*Pack, error) {
	return Parse(defaultPack)
}

// Load reads a pack from a YAML file.
func Load(path string) (*Pack, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt pack: %w", err)
	}
	return Parse(b)
}

// LoadOrDefault loads the pack at path, or the built-in pack when path is empty.
func LoadOrDefault(path string) (*Pack, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}

// Parse decodes and validates a pack.
func Parse(data []byte) (*Pack, error) {
	var p Pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse prompt pack: %w", err)
	}
	if p.Version != 1 {
		return nil, fmt.Errorf("unsupported prompt pack version: %d", p.Version)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every required template exists and that each template's
// declared placeholders match the ones its text uses.
func (p *Pack) Validate() error {
	var problems []string

	for _, name := range Required {
		if _, ok := p.Templates[name]; !ok {
			problems = append(problems, fmt.Sprintf("missing template %q", name))
		}
	}

	names := make([]string, 0, len(p.Templates))
	for name := range p.Templates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tmpl := p.Templates[name]
		if strings.TrimSpace(tmpl.Text) == "" {
			problems = append(problems, fmt.Sprintf("template %q is empty", name))
			continue
		}
		used := Placeholders(tmpl.Text)
		for _, ph := range used {
			if !slices.Contains(tmpl.Placeholders, ph) {
				problems = append(problems, fmt.Sprintf("template %q uses undeclared placeholder {%s}", name, ph))
			}
		}
		for _, ph := range tmpl.Placeholders {
			if !slices.Contains(used, ph) {
				problems = append(problems, fmt.Sprintf("template %q declares unused placeholder {%s}", name, ph))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid prompt pack:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// Render substitutes args into the named template. Every declared placeholder must be supplied.
func (p *Pack) Render(name string, args map[string]string) (string, error) {
	tmpl, ok := p.Templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}

	pairs := make([]string, 0, len(tmpl.Placeholders)*2)
	for _, ph := range tmpl.Placeholders {
		value, ok := args[ph]
		if !ok {
			return "", fmt.Errorf("prompt template %q: missing argument %q", name, ph)
		}
		pairs = append(pairs, "{"+ph+"}", value)
	}

	// A single pass, so substituted values are never rescanned for placeholders.
	return strings.NewReplacer(pairs...).Replace(tmpl.Text), nil
}

// Placeholders returns the distinct placeholder names in text, in order of first use.
func Placeholders(text string) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}

// Package prompts selects and instantiates prompt templates for the pipeline
// stages. Stored templates win over the built-in defaults; the defaults keep
// the pipeline working on an empty database.
package prompts

import (
	"fmt"
	"regexp"
	"strings"

	"redraft/internal/core"
	"redraft/internal/logger"
	"redraft/internal/store"
)

// Band is the rewrite strength derived from the measured AI probability.
type Band string

const (
	BandLight    Band = "light"
	BandStandard Band = "standard"
	BandHeavy    Band = "heavy"
)

// BandFor derives the optimisation band from an AI probability. Round two and
// later never drop below standard.
func BandFor(aiProb float64, round int) Band {
	var band Band
	switch {
	case aiProb < 25:
		band = BandLight
	case aiProb <= 50:
		band = BandStandard
	default:
		band = BandHeavy
	}
	if round >= 2 && band == BandLight {
		band = BandStandard
	}
	return band
}

// templateStore is the slice of the store the catalog needs.
type templateStore interface {
	GetTemplate(id int64) (*core.PromptTemplate, error)
	SelectTemplates(ttype core.TemplateType, filter store.TemplateFilter) ([]core.PromptTemplate, error)
}

// Catalog selects and instantiates prompts.
type Catalog struct {
	store templateStore
}

// NewCatalog creates a catalog over a template store. A nil store is allowed
// and limits selection to the built-in defaults.
func NewCatalog(s templateStore) *Catalog {
	return &Catalog{store: s}
}

// Request describes one selection.
type Request struct {
	Stage       core.TemplateType
	ContentType core.ContentType
	Band        Band
	Round       int
	PromptID    *int64            // caller-pinned template, wins outright
	Vars        map[string]string // values for {variable} slots
}

// Selection is the instantiated prompt plus the template it came from, when a
// stored template was used.
type Selection struct {
	Prompt     string
	TemplateID *int64 // nil when a built-in default served
}

// Select resolves a prompt for the request. Policy, in order: the pinned
// prompt id; the active stored template of the stage with the highest
// priority whose content_type matches (ties go to the most recently created);
// the built-in default for the stage and band.
func (c *Catalog) Select(req Request) (*Selection, error) {
	if req.PromptID != nil && c.store != nil {
		t, err := c.store.GetTemplate(*req.PromptID)
		if err != nil {
			return nil, err
		}
		return &Selection{
			Prompt:     Instantiate(t.Template, req.Vars),
			TemplateID: &t.ID,
		}, nil
	}

	if c.store != nil {
		templates, err := c.store.SelectTemplates(req.Stage, store.TemplateFilter{
			ContentType: req.ContentType,
			ActiveOnly:  true,
		})
		if err != nil {
			return nil, err
		}
		if len(templates) > 0 {
			t := templates[0]
			return &Selection{
				Prompt:     Instantiate(t.Template, req.Vars),
				TemplateID: &t.ID,
			}, nil
		}
	}

	def, err := defaultTemplate(req.Stage, req.Band)
	if err != nil {
		return nil, err
	}
	return &Selection{Prompt: Instantiate(def, req.Vars)}, nil
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Instantiate fills {name} slots in a template. The target_length slot is
// substituted from the fixed character-range table when the caller passed a
// length class. If any placeholder has no value the raw template is returned
// unchanged so a half-filled prompt never reaches the LLM.
func Instantiate(template string, vars map[string]string) string {
	resolved := make(map[string]string, len(vars))
	for k, v := range vars {
		resolved[k] = v
	}
	if length, ok := resolved["target_length"]; ok {
		if min, max, ok := lengthRange(length); ok {
			resolved["target_length"] = fmt.Sprintf("%d-%d字", min, max)
		}
	}

	for _, match := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if _, ok := resolved[match[1]]; !ok {
			logger.Warn("prompt template has unbound placeholder, returning raw template",
				"placeholder", match[1])
			return template
		}
	}

	return placeholderRe.ReplaceAllStringFunc(template, func(token string) string {
		name := strings.Trim(token, "{}")
		return resolved[name]
	})
}

// lengthRange maps a target-length class to its character range.
func lengthRange(name string) (int, int, bool) {
	switch core.TargetLength(name) {
	case core.LengthMini, core.LengthShort, core.LengthMedium, core.LengthLong:
		min, max := core.TargetLength(name).CharRange()
		return min, max, true
	}
	return 0, 0, false
}

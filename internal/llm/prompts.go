package llm

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/prompts.yaml
var promptsYAML []byte

// PromptSet is a system message plus a user prompt template. Templates use
// {{name}} placeholders.
type PromptSet struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

var (
	promptsOnce sync.Once
	prompts     map[string]PromptSet
	promptsErr  error
)

func loadPrompts() (map[string]PromptSet, error) {
	promptsOnce.Do(func() {
		var parsed map[string]PromptSet
		if err := yaml.Unmarshal(promptsYAML, &parsed); err != nil {
			promptsErr = fmt.Errorf("parse prompts: %w", err)
			return
		}
		prompts = parsed
	})
	return prompts, promptsErr
}

// Prompt returns the named prompt set and whether it exists.
func Prompt(name string) (PromptSet, bool) {
	all, err := loadPrompts()
	if err != nil {
		return PromptSet{}, false
	}
	p, ok := all[name]
	return p, ok
}

// MustPrompt is Prompt for names the binary ships with.
func MustPrompt(name string) PromptSet {
	p, ok := Prompt(name)
	if !ok {
		panic(fmt.Sprintf("llm: unknown prompt %q", name))
	}
	return p
}

// Render substitutes {{key}} placeholders in the user template.
func (p PromptSet) Render(vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(p.User))
}

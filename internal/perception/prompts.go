package perception

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"connsolve/internal/puzzle"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/proposer.yaml
var embeddedPrompts []byte

type promptPair struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type promptFile struct {
	Reasoning promptPair `yaml:"reasoning"`
	Parsing   promptPair `yaml:"parsing"`
}

// Prompts holds the rendered-on-demand prompts of both proposer stages.
type Prompts struct {
	reasoningSystem string
	parsingSystem   string
	reasoningUser   *template.Template
	parsingUser     *template.Template
}

// LoadPrompts parses the prompts baked into the binary.
func LoadPrompts() (*Prompts, error) {
	return ParsePrompts(embeddedPrompts)
}

// ParsePrompts parses a prompt file. All four prompts are required.
func ParsePrompts(data []byte) (*Prompts, error) {
	var f promptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}
	for name, s := range map[string]string{
		"reasoning.system": f.Reasoning.System,
		"reasoning.user":   f.Reasoning.User,
		"parsing.system":   f.Parsing.System,
		"parsing.user":     f.Parsing.User,
	} {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("prompt %s is empty", name)
		}
	}

	funcs := template.FuncMap{"join": strings.Join}
	reasoningUser, err := template.New("reasoning.user").Funcs(funcs).Option("missingkey=error").Parse(f.Reasoning.User)
	if err != nil {
		return nil, fmt.Errorf("prompt reasoning.user: %w", err)
	}
	parsingUser, err := template.New("parsing.user").Funcs(funcs).Option("missingkey=error").Parse(f.Parsing.User)
	if err != nil {
		return nil, fmt.Errorf("prompt parsing.user: %w", err)
	}

	return &Prompts{
		reasoningSystem: f.Reasoning.System,
		parsingSystem:   f.Parsing.System,
		reasoningUser:   reasoningUser,
		parsingUser:     parsingUser,
	}, nil
}

// guessView is how one past attempt is shown to the model.
type guessView struct {
	Number  int      `json:"number"`
	Words   []string `json:"words"`
	Correct bool     `json:"correct"`
	OneAway bool     `json:"one_away"`
}

// Reasoning renders the first-stage prompts.
func (p *Prompts) Reasoning(words []puzzle.Word, history []puzzle.Attempt) (system, user string, err error) {
	views := make([]guessView, len(history))
	for i, a := range history {
		views[i] = guessView{Number: a.Number, Words: a.Labels(), Correct: a.Correct(), OneAway: a.OneAway}
	}
	hist := "none"
	if len(views) > 0 {
		data, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return "", "", fmt.Errorf("failed to encode history: %w", err)
		}
		hist = string(data)
	}

	var b strings.Builder
	err = p.reasoningUser.Execute(&b, map[string]any{
		"Words":   puzzle.Labels(words),
		"History": hist,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to render reasoning prompt: %w", err)
	}
	return p.reasoningSystem, b.String(), nil
}

// Parsing renders the second-stage prompts around the first stage's reply.
func (p *Prompts) Parsing(reasoning string) (system, user string, err error) {
	var b strings.Builder
	if err := p.parsingUser.Execute(&b, map[string]any{"Reasoning": reasoning}); err != nil {
		return "", "", fmt.Errorf("failed to render parsing prompt: %w", err)
	}
	return p.parsingSystem, b.String(), nil
}

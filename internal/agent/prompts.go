package agent

import (
	_ "embed"
	"strings"

	"github.com/codeatlas-ai/codeatlas/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptSet struct {
	System  string `yaml:"system"`
	Kickoff string `yaml:"kickoff"`
	Resume  string `yaml:"resume"`
}

var prompts = mustLoadPrompts()

func mustLoadPrompts() promptSet {
	var p promptSet
	if err := yaml.Unmarshal(promptsYAML, &p); err != nil {
		panic("agent: invalid embedded prompts: " + err.Error())
	}
	return p
}

func kickoffPrompt(handle models.RepositoryHandle, question string) string {
	r := strings.NewReplacer(
		"{repo}", handle.Name,
		"{path}", handle.Path,
		"{question}", question,
	)
	return r.Replace(prompts.Kickoff)
}

func resumePrompt(question string) string {
	return strings.ReplaceAll(prompts.Resume, "{question}", question)
}

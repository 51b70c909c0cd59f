package ollama

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
)

// TemplateData is what a prompt template renders against. Content carries
// the input text, Files the names it came from.
type TemplateData struct {
	Name    string
	Date    string
	Content string
	Files   []string
}

func RenderPrompt(prompt string, data TemplateData) (string, error) {
	tpl := template.New("prompt").
		Funcs(template.FuncMap{
			"join": strings.Join,
		})

	tpl, err := tpl.Parse(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return buf.String(), nil
}

func RenderPromptFile(path string, data TemplateData) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt template %s: %w", path, err)
	}
	return RenderPrompt(string(raw), data)
}

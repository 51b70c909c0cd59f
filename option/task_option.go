package option

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

type TaskFile struct {
	Client *ClientOption       `yaml:"Client"`
	Tasks  []*PromptTaskOption `yaml:"Tasks"`
}

type ClientOption struct {
	Host              string `yaml:"Host"`
	RequestsPerMinute int    `yaml:"RequestsPerMinute"`
}

type PromptTaskOption struct {
	Name           string   `yaml:"Name"`
	Model          string   `yaml:"Model"`
	Temperature    *float32 `yaml:"Temperature"`
	CronTime       string   `yaml:"CronTime"`
	At             string   `yaml:"At"`
	PromptTemplate string   `yaml:"PromptTemplate"`
	ContentFiles   []string `yaml:"ContentFiles"`
	OutputDir      string   `yaml:"OutputDir"`
	Format         string   `yaml:"Format"`
	UploadURL      string   `yaml:"UploadURL"`
	StripThink     bool     `yaml:"StripThink"`
}

// Scheduled reports whether the task runs on a schedule rather than once.
func (o *PromptTaskOption) Scheduled() bool {
	return o.CronTime != "" || o.At != ""
}

func LoadTaskFile(filePath string) (*TaskFile, error) {
	fileContent, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	var tf TaskFile
	if err := yaml.Unmarshal(fileContent, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse task file %s: %w", filePath, err)
	}
	if err := tf.Validate(); err != nil {
		return nil, err
	}
	return &tf, nil
}

func (tf *TaskFile) Validate() error {
	if len(tf.Tasks) == 0 {
		return fmt.Errorf("task file defines no tasks")
	}
	seen := make(map[string]bool, len(tf.Tasks))
	for i, t := range tf.Tasks {
		if t == nil {
			return fmt.Errorf("task %d is empty", i)
		}
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("task %d has no Name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate task name %q", t.Name)
		}
		seen[t.Name] = true
		if t.PromptTemplate == "" {
			return fmt.Errorf("task %q has no PromptTemplate", t.Name)
		}
		if t.CronTime != "" && t.At != "" {
			return fmt.Errorf("task %q sets both CronTime and At", t.Name)
		}
		if t.Format != "" && t.Format != "json" {
			return fmt.Errorf("task %q has unsupported Format %q", t.Name, t.Format)
		}
	}
	return nil
}

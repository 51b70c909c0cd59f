package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"assistant-cli/history"
	"assistant-cli/ollama"
	"assistant-cli/option"
	"assistant-cli/util"
)

// PromptTask renders a prompt template against its content files, sends it
// through the client, and writes the cleaned result to the output directory.
type PromptTask struct {
	*option.PromptTaskOption
	defaults option.Config
	limiter  *rate.Limiter
	store    *history.Store
}

func NewPromptTask(opt *option.PromptTaskOption, defaults option.Config, limiter *rate.Limiter, store *history.Store) *PromptTask {
	return &PromptTask{PromptTaskOption: opt, defaults: defaults, limiter: limiter, store: store}
}

func (pt *PromptTask) model() string {
	if pt.Model != "" {
		return pt.Model
	}
	return pt.defaults.DefaultModel
}

func (pt *PromptTask) temperature() *float32 {
	if pt.Temperature != nil {
		return pt.Temperature
	}
	t := pt.defaults.Temperature
	return &t
}

func (pt *PromptTask) prepare() (string, error) {
	var parts []string
	for _, file := range pt.ContentFiles {
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read content file %s: %w", file, err)
		}
		parts = append(parts, string(raw))
	}
	data := ollama.TemplateData{
		Name:    pt.Name,
		Date:    time.Now().Format("2006-01-02"),
		Content: strings.Join(parts, "\n\n"),
		Files:   pt.ContentFiles,
	}
	prompt, err := ollama.RenderPromptFile(pt.PromptTemplate, data)
	if err != nil {
		return "", err
	}
	return prompt, nil
}

func (pt *PromptTask) exec(ctx context.Context, client *ollama.Client, prompt string) (*ollama.GenerateResponse, error) {
	if pt.limiter != nil {
		if err := pt.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to wait for request slot: %w", err)
		}
	}
	payload := ollama.NewGeneratePayload(pt.model(), prompt, pt.temperature(), false)
	if pt.Format == "json" {
		payload.Format = json.RawMessage(`"json"`)
	}
	return client.Generate(ctx, payload)
}

func (pt *PromptTask) resultFile(now time.Time) string {
	name := fmt.Sprintf("%s-%s.md", pt.Name, now.Format("20060102-150405"))
	return filepath.Join(pt.OutputDir, name)
}

func (pt *PromptTask) finish(prompt string, resp *ollama.GenerateResponse) error {
	content := resp.Response
	if pt.StripThink {
		content = util.RemoveThinkTags(content)
		content = util.RemoveEmptyLine(content)
	}
	header := fmt.Sprintf("TASK:%s\t\t%s\t\t%s", pt.Name, resp.Model, time.Now().Format(time.RFC3339))
	content = util.AddContentHeader(header, content)

	outFile := pt.resultFile(time.Now())
	if err := util.WriteContentToFile(content, outFile); err != nil {
		return err
	}
	log.Printf("task %s wrote result to %s", pt.Name, outFile)

	if pt.UploadURL != "" {
		if err := util.UploadFile(pt.UploadURL, outFile); err != nil {
			log.Printf("failed to upload result for task %s, err:%v", pt.Name, err)
		}
	}
	pt.record(prompt, resp)
	return nil
}

func (pt *PromptTask) record(prompt string, resp *ollama.GenerateResponse) {
	if pt.store == nil {
		return
	}
	ex := history.Exchange{
		Source:      history.SourceTask,
		Model:       resp.Model,
		Temperature: *pt.temperature(),
		Prompt:      prompt,
		Response:    resp.Response,
		EvalCount:   resp.EvalCount,
		Duration:    time.Duration(resp.TotalDuration),
	}
	if err := pt.store.Record(ex); err != nil {
		log.Printf("failed to record task exchange: %v", err)
	}
}

// Do runs the full prepare/exec/finish cycle once.
func (pt *PromptTask) Do(ctx context.Context, client *ollama.Client) error {
	prompt, err := pt.prepare()
	if err != nil {
		return fmt.Errorf("task %s: %w", pt.Name, err)
	}
	resp, err := pt.exec(ctx, client, prompt)
	if err != nil {
		return fmt.Errorf("task %s: %w", pt.Name, err)
	}
	if err := pt.finish(prompt, resp); err != nil {
		return fmt.Errorf("task %s: %w", pt.Name, err)
	}
	return nil
}

package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	runewidth "github.com/mattn/go-runewidth"

	"assistant-cli/history"
	"assistant-cli/ollama"
	"assistant-cli/option"
)

var (
	mdOnce     sync.Once
	mdRenderer *glamour.TermRenderer
)

func markdownRenderer() *glamour.TermRenderer {
	mdOnce.Do(func() {
		width := TerminalWidth()
		if width > 100 {
			width = 100
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			mdRenderer = r
		}
	})
	return mdRenderer
}

// RenderResponse prepares a complete response for display: markdown-rendered
// on a terminal, verbatim everywhere else. The result always ends in a
// newline so the closing separator starts on its own line.
func RenderResponse(text string) string {
	if IsStdoutTTY() {
		if r := markdownRenderer(); r != nil {
			if out, err := r.Render(text); err == nil {
				return strings.TrimRight(out, "\n") + "\n"
			}
		}
	}
	if strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}

func Separator(width int) string {
	return SeparatorStyle.Render(strings.Repeat("─", width))
}

func PrintSeparator(width int) {
	fmt.Println(Separator(width))
}

func PrintError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
}

func PrintSuccess(msg string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render("✅"), msg)
}

// PrintThinking announces which model is handling the prompt.
func PrintThinking(model string) {
	fmt.Printf("🤖 Using %s (thinking)...\n", ModelStyle.Render(model))
}

// PrintAssistantPrefix opens a response block.
func PrintAssistantPrefix() {
	fmt.Print(HeaderStyle.Render("Assistant:") + " ")
}

func PrintStats(stats *ollama.StreamStats) {
	if stats == nil || !IsStdoutTTY() {
		return
	}
	fmt.Println(DimStyle.Render(stats.Format()))
}

// PrintModelList renders the installed models as an aligned table, marking
// the configured default.
func PrintModelList(models []ollama.ModelInfo, defaultModel string) {
	fmt.Println(HeaderStyle.Render("Available models:"))
	PrintSeparator(40)
	if len(models) == 0 {
		fmt.Println(DimStyle.Render("  (none installed)"))
		return
	}
	nameWidth := 0
	for _, m := range models {
		if w := runewidth.StringWidth(m.Name); w > nameWidth {
			nameWidth = w
		}
	}
	for _, m := range models {
		marker := ""
		if m.Name == defaultModel {
			marker = " ⭐ (default)"
		}
		fmt.Printf("  %s  %s%s\n",
			ModelStyle.Render(runewidth.FillRight(m.Name, nameWidth)),
			NumberStyle.Render(m.FormatSize()),
			marker)
	}
}

// PrintConfig shows the effective configuration and where it lives on disk.
func PrintConfig(cfg option.Config, path string) {
	fmt.Println(HeaderStyle.Render("Current configuration:"))
	PrintSeparator(40)
	fmt.Printf("  %s %s\n", LabelStyle.Render("Default model:"), ModelStyle.Render(cfg.DefaultModel))
	fmt.Printf("  %s %s\n", LabelStyle.Render("Ollama host:"), cfg.OllamaHost)
	fmt.Printf("  %s %s\n", LabelStyle.Render("Temperature:"), NumberStyle.Render(fmt.Sprintf("%.2f", cfg.Temperature)))
	fmt.Printf("  %s %t\n", LabelStyle.Render("Streaming:"), cfg.Stream)
	fmt.Printf("  %s %s\n", LabelStyle.Render("Config file:"), DimStyle.Render(path))
}

func PrintUsageHint() {
	fmt.Println(HintStyle.Render("No prompt provided."))
	fmt.Println(HintStyle.Render(`Usage: assistant-cli "your prompt here"`))
	fmt.Println(HintStyle.Render("   or: assistant-cli            (interactive mode)"))
	fmt.Println(HintStyle.Render("   or: assistant-cli --help     (all flags)"))
}

// PrintExchanges renders stored exchanges, newest first, with truncated
// previews.
func PrintExchanges(exchanges []history.Exchange) {
	fmt.Println(HeaderStyle.Render("Recent exchanges:"))
	if len(exchanges) == 0 {
		fmt.Println(DimStyle.Render("  (history is empty)"))
		return
	}
	for _, ex := range exchanges {
		meta := fmt.Sprintf("%s  %s  %s", ex.CreatedAt.Format("2006-01-02 15:04:05"), ex.Source, ex.Model)
		if ex.EvalCount > 0 {
			meta += fmt.Sprintf("  %d tokens", ex.EvalCount)
		}
		fmt.Println(DimStyle.Render(meta))
		fmt.Printf("  > %s\n", truncateLine(ex.Prompt, 70))
		fmt.Printf("    %s\n", truncateLine(ex.Response, 70))
	}
}

// truncateLine flattens text to one line and caps its display width.
func truncateLine(text string, width int) string {
	flat := strings.Join(strings.Fields(text), " ")
	return runewidth.Truncate(flat, width, "…")
}

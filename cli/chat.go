package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"

	"assistant-cli/history"
	"assistant-cli/ollama"
)

// ChatSession is an interactive conversation that keeps the full message
// history for the lifetime of the process.
type ChatSession struct {
	client      *ollama.Client
	store       *history.Store
	model       string
	temperature *float32
	messages    []ollama.Message
	line        *liner.State
	historyFile string
}

// NewChatSession sets up the line editor and loads the persisted input
// history. store may be nil to disable recording.
func NewChatSession(client *ollama.Client, store *history.Store, model string, temperature *float32, historyFile string) *ChatSession {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	cs := &ChatSession{
		client:      client,
		store:       store,
		model:       model,
		temperature: temperature,
		line:        line,
		historyFile: historyFile,
	}
	cs.loadInputHistory()
	return cs
}

// Close releases the terminal and persists the input history.
func (cs *ChatSession) Close() {
	cs.saveInputHistory()
	cs.line.Close()
}

func (cs *ChatSession) loadInputHistory() {
	f, err := os.Open(cs.historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	cs.line.ReadHistory(f)
}

func (cs *ChatSession) saveInputHistory() {
	if cs.historyFile == "" {
		return
	}
	f, err := os.OpenFile(cs.historyFile, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		log.Printf("failed to save chat input history: %v", err)
		return
	}
	defer f.Close()
	cs.line.WriteHistory(f)
}

func (cs *ChatSession) printWelcome() {
	fmt.Println(HeaderStyle.Render("assistant-cli chat"))
	fmt.Printf("Model: %s\n", ModelStyle.Render(cs.model))
	fmt.Println(DimStyle.Render("/help for commands, /quit or Ctrl+D to exit"))
	PrintSeparator(40)
}

// Run drives the read/send loop until the user quits or stdin closes.
func (cs *ChatSession) Run(ctx context.Context) error {
	cs.printWelcome()
	for {
		input, err := cs.line.Prompt("you> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println(DimStyle.Render("(interrupted, /quit to exit)"))
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		cs.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := cs.handleCommand(input); quit {
				return nil
			}
			continue
		}
		cs.send(ctx, input)
	}
}

func (cs *ChatSession) handleCommand(input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Println(DimStyle.Render("/model [name]  show or switch the model"))
		fmt.Println(DimStyle.Render("/clear         drop the conversation history"))
		fmt.Println(DimStyle.Render("/config        show session settings"))
		fmt.Println(DimStyle.Render("/quit          leave the chat"))
	case "/model":
		if len(fields) < 2 {
			fmt.Printf("Model: %s\n", ModelStyle.Render(cs.model))
			break
		}
		cs.model = fields[1]
		PrintSuccess(fmt.Sprintf("Switched to %s", cs.model))
	case "/clear":
		cs.messages = nil
		PrintSuccess("Conversation history cleared")
	case "/config":
		fmt.Printf("  %s %s\n", LabelStyle.Render("Model:"), ModelStyle.Render(cs.model))
		if cs.temperature != nil {
			fmt.Printf("  %s %s\n", LabelStyle.Render("Temperature:"), NumberStyle.Render(fmt.Sprintf("%.2f", *cs.temperature)))
		}
		fmt.Printf("  %s %s\n", LabelStyle.Render("Host:"), cs.client.Host())
		fmt.Printf("  %s %d\n", LabelStyle.Render("Messages:"), len(cs.messages))
	default:
		fmt.Println(HintStyle.Render("Unknown command, /help lists what's available"))
	}
	return false
}

func (cs *ChatSession) send(ctx context.Context, input string) {
	// Ctrl+C during a response cancels only this request, not the session.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	cs.messages = append(cs.messages, ollama.NewUserMessage(input))
	payload := ollama.NewChatPayload(cs.model, cs.messages, cs.temperature, true)

	text, stats, err := cs.client.ChatStream(ctx, payload, func(chunk ollama.StreamChunk) error {
		fmt.Print(chunk.Content)
		return nil
	})
	if err != nil {
		// Drop the unanswered message so a retry doesn't double it.
		cs.messages = cs.messages[:len(cs.messages)-1]
		fmt.Println()
		if errors.Is(err, context.Canceled) {
			fmt.Println(DimStyle.Render("(canceled)"))
			return
		}
		PrintError(err)
		return
	}
	fmt.Println()
	PrintStats(stats)

	cs.messages = append(cs.messages, ollama.NewAssistantMessage(text))
	cs.record(input, text, stats)
}

func (cs *ChatSession) record(prompt, response string, stats *ollama.StreamStats) {
	if cs.store == nil {
		return
	}
	var temp float32
	if cs.temperature != nil {
		temp = *cs.temperature
	}
	ex := history.Exchange{
		Source:      history.SourceChat,
		Model:       cs.model,
		Temperature: temp,
		Prompt:      prompt,
		Response:    response,
	}
	if stats != nil {
		ex.EvalCount = stats.Tokens
		ex.Duration = stats.TotalTime()
	}
	if err := cs.store.Record(ex); err != nil {
		log.Printf("failed to record chat exchange: %v", err)
	}
}

package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// StreamChunk is one decoded line of a streaming response body. Both the
// generate and chat endpoints stream newline-delimited JSON; the only
// difference is where the text lives, which the reader normalizes into
// Content.
type StreamChunk struct {
	Content         string
	Done            bool
	DoneReason      string
	Model           string
	PromptEvalCount int
	EvalCount       int
	EvalDuration    int64
	TotalDuration   int64
}

// StreamFunc receives chunks as they arrive. Returning an error aborts the
// stream.
type StreamFunc func(StreamChunk) error

type StreamReader struct {
	reader      *bufio.Reader
	accumulated strings.Builder
	stats       *StreamStats
}

func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		reader: bufio.NewReader(r),
		stats:  newStreamStats(),
	}
}

// Process reads lines until the done chunk, EOF, or cancellation, invoking fn
// for every chunk. Lines that fail to decode are skipped; a line carrying a
// server error ends the stream with that error. It returns the accumulated
// text and the collected stats.
func (sr *StreamReader) Process(ctx context.Context, fn StreamFunc) (string, *StreamStats, error) {
	for {
		select {
		case <-ctx.Done():
			return sr.accumulated.String(), sr.stats, ctx.Err()
		default:
		}

		line, err := sr.reader.ReadBytes('\n')
		if len(line) > 0 {
			chunk, ok, decodeErr := decodeChunkLine(line)
			if decodeErr != nil {
				return sr.accumulated.String(), sr.stats, decodeErr
			}
			if ok {
				if chunk.Content != "" {
					sr.stats.RecordFirstToken()
					sr.accumulated.WriteString(chunk.Content)
				}
				if chunk.Done {
					sr.stats.Finalize(chunk)
				}
				if fn != nil {
					if cbErr := fn(chunk); cbErr != nil {
						return sr.accumulated.String(), sr.stats, cbErr
					}
				}
				if chunk.Done {
					return sr.accumulated.String(), sr.stats, nil
				}
			}
		}
		if err == io.EOF {
			sr.stats.Finalize(StreamChunk{})
			return sr.accumulated.String(), sr.stats, nil
		}
		if err != nil {
			return sr.accumulated.String(), sr.stats, newClientError(ErrTypeConnection, "stream read failed", err)
		}
	}
}

// decodeChunkLine parses one NDJSON line. ok is false for blank or malformed
// lines, which streaming servers occasionally emit and which are safe to
// skip.
func decodeChunkLine(line []byte) (StreamChunk, bool, error) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return StreamChunk{}, false, nil
	}
	var raw struct {
		Response        string   `json:"response"`
		Message         *Message `json:"message"`
		Done            bool     `json:"done"`
		DoneReason      string   `json:"done_reason"`
		Model           string   `json:"model"`
		PromptEvalCount int      `json:"prompt_eval_count"`
		EvalCount       int      `json:"eval_count"`
		EvalDuration    int64    `json:"eval_duration"`
		TotalDuration   int64    `json:"total_duration"`
		Error           string   `json:"error"`
	}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return StreamChunk{}, false, nil
	}
	if raw.Error != "" {
		return StreamChunk{}, false, newClientError(ErrTypeServer, fmt.Sprintf("server error: %s", raw.Error), nil)
	}
	chunk := StreamChunk{
		Content:         raw.Response,
		Done:            raw.Done,
		DoneReason:      raw.DoneReason,
		Model:           raw.Model,
		PromptEvalCount: raw.PromptEvalCount,
		EvalCount:       raw.EvalCount,
		EvalDuration:    raw.EvalDuration,
		TotalDuration:   raw.TotalDuration,
	}
	if raw.Message != nil {
		chunk.Content = raw.Message.Content
	}
	return chunk, true, nil
}

// StreamStats measures a streaming response: time to first token, token
// count, throughput.
type StreamStats struct {
	Start        time.Time
	FirstToken   time.Time
	End          time.Time
	Tokens       int
	PromptTokens int
}

func newStreamStats() *StreamStats {
	return &StreamStats{Start: time.Now()}
}

func (s *StreamStats) RecordFirstToken() {
	if s.FirstToken.IsZero() {
		s.FirstToken = time.Now()
	}
}

func (s *StreamStats) Finalize(final StreamChunk) {
	if s.End.IsZero() {
		s.End = time.Now()
	}
	if final.EvalCount > 0 {
		s.Tokens = final.EvalCount
	}
	if final.PromptEvalCount > 0 {
		s.PromptTokens = final.PromptEvalCount
	}
}

func (s *StreamStats) TotalTime() time.Duration {
	if s.End.IsZero() {
		return time.Since(s.Start)
	}
	return s.End.Sub(s.Start)
}

func (s *StreamStats) TTFT() time.Duration {
	if s.FirstToken.IsZero() {
		return 0
	}
	return s.FirstToken.Sub(s.Start)
}

func (s *StreamStats) TokensPerSecond() float64 {
	secs := s.TotalTime().Seconds()
	if secs <= 0 || s.Tokens == 0 {
		return 0
	}
	return float64(s.Tokens) / secs
}

// Format renders a one-line summary for the terminal.
func (s *StreamStats) Format() string {
	out := fmt.Sprintf("%.1fs", s.TotalTime().Seconds())
	if s.Tokens > 0 {
		out += fmt.Sprintf(" | %d tokens | %.1f tok/s", s.Tokens, s.TokensPerSecond())
	}
	if ttft := s.TTFT(); ttft > 0 {
		out += fmt.Sprintf(" | first token %dms", ttft.Milliseconds())
	}
	return out
}

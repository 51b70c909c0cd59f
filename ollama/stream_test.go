package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStreamReaderGenerateChunks(t *testing.T) {
	body := strings.Join([]string{
		`{"response":"Hello","done":false}`,
		`{"response":" world","done":false}`,
		`{"response":"","done":true,"done_reason":"stop","eval_count":12,"total_duration":900000000}`,
	}, "\n")

	var chunks []StreamChunk
	text, stats, err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), func(c StreamChunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if text != "Hello world" {
		t.Errorf("text = %q, want 'Hello world'", text)
	}
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	if !chunks[2].Done {
		t.Error("final chunk not marked done")
	}
	if chunks[2].DoneReason != "stop" {
		t.Errorf("DoneReason = %q, want 'stop'", chunks[2].DoneReason)
	}
	if stats.Tokens != 12 {
		t.Errorf("stats.Tokens = %d, want 12", stats.Tokens)
	}
}

func TestStreamReaderChatChunks(t *testing.T) {
	body := strings.Join([]string{
		`{"message":{"role":"assistant","content":"Hi"},"done":false}`,
		`{"message":{"role":"assistant","content":"!"},"done":true,"eval_count":2}`,
	}, "\n")

	text, _, err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if text != "Hi!" {
		t.Errorf("text = %q, want 'Hi!'", text)
	}
}

func TestStreamReaderSkipsMalformedLines(t *testing.T) {
	body := strings.Join([]string{
		`{"response":"a","done":false}`,
		`not json at all`,
		``,
		`{"response":"b","done":true}`,
	}, "\n")

	var seen int
	text, _, err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), func(c StreamChunk) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if text != "ab" {
		t.Errorf("text = %q, want 'ab'", text)
	}
	if seen != 2 {
		t.Errorf("chunks seen = %d, want 2", seen)
	}
}

func TestStreamReaderServerErrorLine(t *testing.T) {
	body := `{"error":"model exploded"}` + "\n"
	_, _, err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "model exploded") {
		t.Errorf("error = %v, want server message quoted", err)
	}
}

func TestStreamReaderMissingDone(t *testing.T) {
	// A body that just ends is treated as a complete stream, not an error.
	body := `{"response":"partial","done":false}` + "\n"
	text, _, err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if text != "partial" {
		t.Errorf("text = %q, want 'partial'", text)
	}
}

func TestStreamReaderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewStreamReader(strings.NewReader(`{"response":"x","done":true}`)).Process(ctx, nil)
	if err != context.Canceled {
		t.Errorf("Process() error = %v, want context.Canceled", err)
	}
}

func TestStreamReaderCallbackAborts(t *testing.T) {
	body := strings.Join([]string{
		`{"response":"a","done":false}`,
		`{"response":"b","done":false}`,
	}, "\n")

	wantErr := context.Canceled
	_, _, err := NewStreamReader(strings.NewReader(body)).Process(context.Background(), func(c StreamChunk) error {
		return wantErr
	})
	if err != wantErr {
		t.Errorf("Process() error = %v, want callback error", err)
	}
}

func TestGenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher, _ := w.(http.Flusher)
		for _, line := range []string{
			`{"response":"one ","done":false}`,
			`{"response":"two","done":true,"eval_count":5}`,
		} {
			w.Write([]byte(line + "\n"))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	var streamed strings.Builder
	text, stats, err := client.GenerateStream(context.Background(), NewGeneratePayload("m", "p", nil, false), func(c StreamChunk) error {
		streamed.WriteString(c.Content)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	if text != "one two" {
		t.Errorf("text = %q, want 'one two'", text)
	}
	if streamed.String() != text {
		t.Errorf("streamed %q differs from returned %q", streamed.String(), text)
	}
	if stats.Tokens != 5 {
		t.Errorf("stats.Tokens = %d, want 5", stats.Tokens)
	}
}

func TestStreamStatsFormat(t *testing.T) {
	stats := newStreamStats()
	stats.RecordFirstToken()
	stats.Finalize(StreamChunk{EvalCount: 30, Done: true})

	got := stats.Format()
	if !strings.Contains(got, "30 tokens") {
		t.Errorf("Format() = %q, want token count included", got)
	}
	if !strings.Contains(got, "tok/s") {
		t.Errorf("Format() = %q, want throughput included", got)
	}
}

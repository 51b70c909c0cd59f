package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// endWord finishes multi-line input on its own line, for terminals where
// sending EOF is awkward.
const endWord = "END"

// ReadMultiline prompts on the terminal and collects lines until EOF or a
// line containing exactly END. Surrounding whitespace is trimmed, inner
// blank lines survive.
func ReadMultiline() (string, error) {
	fmt.Println(HintStyle.Render("Enter your prompt (Ctrl+D or type 'END' on a new line to finish):"))
	PrintSeparator(60)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == endWord {
			break
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// ReadPiped drains stdin when input arrives through a pipe.
func ReadPiped() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read piped input: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

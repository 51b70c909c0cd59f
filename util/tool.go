package util

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	thinkRe     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	emptyLineRe = regexp.MustCompile(`(?m)^\s*$\n?`)
)

func AddContentHeader(header, content string) string {
	return header + "\n" + content
}

// RemoveThinkTags strips the reasoning blocks some models emit before their
// answer.
func RemoveThinkTags(content string) string {
	return thinkRe.ReplaceAllString(content, "")
}

func RemoveEmptyLine(content string) string {
	return emptyLineRe.ReplaceAllString(content, "")
}

func WriteContentToFile(content, fileName string) error {
	dir := filepath.Dir(fileName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dir %s: %w", dir, err)
	}
	f, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", fileName, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("failed to write to file %s: %w", fileName, err)
	}
	return nil
}

// UploadFile posts filePath to serverURL as a multipart form.
func UploadFile(serverURL, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	fileField, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := io.Copy(fileField, file); err != nil {
		return fmt.Errorf("failed to copy file content: %w", err)
	}
	writer.Close()

	response, err := http.Post(serverURL, writer.FormDataContentType(), &requestBody)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned non-200 status: %d, response: %s", response.StatusCode, string(responseBody))
	}

	log.Printf("finish upload file, response:%s", string(responseBody))
	return nil
}

func ParseCronTime(cronTime string) (hour, minute, second int, err error) {
	parts := strings.Split(cronTime, ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid time format, expected 'HH:MM:SS'")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid minute: %w", err)
	}
	second, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid second: %w", err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, 0, 0, fmt.Errorf("time %q out of range", cronTime)
	}
	return hour, minute, second, nil
}

// DailyCronSpec converts a wall-clock time "HH:MM:SS" into a six-field cron
// expression firing once a day.
func DailyCronSpec(at string) (string, error) {
	hour, minute, second, err := ParseCronTime(at)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d %d * * *", second, minute, hour), nil
}

package ollama

import (
	"fmt"
	"time"
)

type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

// SizeMB returns the model size in megabytes.
func (m ModelInfo) SizeMB() float64 {
	return float64(m.Size) / (1024 * 1024)
}

func (m ModelInfo) FormatSize() string {
	return fmt.Sprintf("%.1f MB", m.SizeMB())
}

type TagsResponse struct {
	Models []ModelInfo `json:"models"`
}

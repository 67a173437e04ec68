package sources

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jonathan/police-terminal/internal/types"
)

// maxLineBytes bounds a single JSONL line; chat messages carrying inline
// HTML can be large.
const maxLineBytes = 8 << 20

// ChatLog reads a chat host's JSONL chat file: one metadata header line
// followed by one message object per line.
type ChatLog struct {
	Path string
}

type chatLine struct {
	Name     string  `json:"name"`
	IsUser   bool    `json:"is_user"`
	Mes      *string `json:"mes"`
	SendDate any     `json:"send_date"`
}

// Messages returns every message in file order (oldest first). The header
// line and malformed lines are skipped.
func (c ChatLog) Messages(_ context.Context) ([]types.ChatMessage, error) {
	if c.Path == "" {
		return nil, ErrUnavailable
	}
	f, err := os.Open(c.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrUnavailable
		}
		return nil, &SourceError{Source: "chat log", Message: fmt.Sprintf("failed to open %s", c.Path), Cause: err}
	}
	defer func() { _ = f.Close() }()

	return ParseChatLog(f)
}

// ParseChatLog decodes JSONL chat messages from r.
func ParseChatLog(r io.Reader) ([]types.ChatMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var messages []types.ChatMessage
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var cl chatLine
		if err := json.Unmarshal(line, &cl); err != nil || cl.Mes == nil {
			continue
		}
		messages = append(messages, types.ChatMessage{
			Name:     cl.Name,
			IsUser:   cl.IsUser,
			Text:     *cl.Mes,
			SendDate: sendDate(cl.SendDate),
		})
	}
	if err := scanner.Err(); err != nil {
		return messages, &SourceError{Source: "chat log", Message: "failed to read lines", Cause: err}
	}
	return messages, nil
}

// sendDate accepts both the string and the epoch-millis forms hosts write.
func sendDate(v any) string {
	switch d := v.(type) {
	case string:
		return d
	case float64:
		return fmt.Sprintf("%.0f", d)
	default:
		return ""
	}
}

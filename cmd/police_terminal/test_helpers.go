package main

import (
	"os"
	"path/filepath"
	"testing"
)

// writeHostFiles writes a saved host page and a chat log into a temp dir
// and returns their paths.
func writeHostFiles(t *testing.T, page, chat string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	pagePath := filepath.Join(dir, "page.html")
	chatPath := filepath.Join(dir, "chat.jsonl")
	if err := os.WriteFile(pagePath, []byte(page), 0o600); err != nil {
		t.Fatalf("failed to write page: %v", err)
	}
	if err := os.WriteFile(chatPath, []byte(chat), 0o600); err != nil {
		t.Fatalf("failed to write chat log: %v", err)
	}
	return pagePath, chatPath
}

// resetFlags restores the flag variables a command run may have set.
func resetFlags() {
	configPath, verbose = "", false
	scanPage, scanChat, scanPanel, scanMode = "", "", "map", "update"
	scanSave, scanHTML, scanJSON = false, false, false
	rootCmd.SetArgs(nil)
}

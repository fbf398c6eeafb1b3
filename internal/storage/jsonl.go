package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"faucetScope/internal/model"
)

// JsonlAudit appends reconciled transfers to a JSONL file. It is an
// optional audit trail next to the store, not a source of truth.
type JsonlAudit struct {
	path string
	mu   sync.Mutex
}

func NewJsonlAudit(path string) *JsonlAudit {
	return &JsonlAudit{path: path}
}

// AppendTransfers writes a batch of transfer events as JSON lines.
func (a *JsonlAudit) AppendTransfers(transfers []model.TransferEvent) error {
	if len(transfers) == 0 {
		return nil
	}

	dir := filepath.Dir(a.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit dir: %w", err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, transfer := range transfers {
		line, err := json.Marshal(transfer)
		if err != nil {
			return fmt.Errorf("marshal transfer: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write transfer: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush audit file: %w", err)
	}

	return nil
}

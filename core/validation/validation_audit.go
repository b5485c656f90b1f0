package validation

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// OpenAuditLog opens (appending) the validation audit log at path.
func OpenAuditLog(path string) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "[AUDIT] ", log.LstdFlags|log.LUTC), f, nil
}

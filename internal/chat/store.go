package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"nexus-rag/internal/domain"
)

// FileStore persiste la lista de sesiones como un único documento JSON.
// Los timestamps viajan como strings RFC 3339 y se reconstruyen como
// time.Time al cargar.
type FileStore struct {
	path string
}

// NewFileStore construye el store sobre la ruta dada.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() ([]*domain.ChatSession, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session cache: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var sessions []*domain.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("decode session cache: %w", err)
	}
	return sessions, nil
}

func (s *FileStore) Save(sessions []*domain.ChatSession) error {
	if sessions == nil {
		sessions = []*domain.ChatSession{}
	}
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session cache: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	// Escritura a archivo temporal + rename para no dejar un cache
	// truncado si el proceso muere a mitad de escritura.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session cache: %w", err)
	}
	return nil
}

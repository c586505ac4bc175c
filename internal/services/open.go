package services

import (
	"fmt"
	"log/slog"
)

const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// OpenStore returns the Store for backend. projectID is only used by the
// Firestore backend.
func OpenStore(backend, projectID string) (Store, error) {
	switch backend {
	case BackendMemory:
		slog.Warn("using in-memory store; data is lost on exit")
		return NewMemoryStore(), nil
	case BackendFirestore:
		fs, err := NewFirestoreService(projectID)
		if err != nil {
			return nil, err
		}
		return fs, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

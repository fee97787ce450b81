package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"stockroom/internal"
	"stockroom/internal/storage"
)

type MailStoreService struct {
	db         *storage.DB
	rawMailDir string
}

type StoredMessage struct {
	internal.RequestRow
	Created bool
}

func NewMailStoreService(db *storage.DB, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir}
}

// Store writes the raw message under its sha256 and records the request.
// A message already known by provider and message id keeps its status.
func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (StoredMessage, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return StoredMessage{}, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return StoredMessage{}, err
		}
	}

	status := "fetched"
	created := true
	existing, err := s.db.GetRequestByProviderMessageID(msg.Provider, msg.MessageID)
	switch {
	case err == nil:
		status = existing.Status
		created = false
	case !errors.Is(err, storage.ErrNotFound):
		return StoredMessage{}, err
	}

	row, err := s.db.UpsertRequest(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, status)
	if err != nil {
		return StoredMessage{}, err
	}
	return StoredMessage{RequestRow: row, Created: created}, nil
}

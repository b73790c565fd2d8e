package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"TradeLens/internal/domain/models"
	"TradeLens/pkg/cache"
)

const statePrefix = "state"

var (
	keySessionID     = cache.GenerateKey(statePrefix, "session_id")
	keyClientID      = cache.GenerateKey(statePrefix, "client_id")
	keyPanelPosition = cache.GenerateKey(statePrefix, "panel_position")
	keyBookmarks     = cache.GenerateKey(statePrefix, "bookmarks")
	keyDebug         = cache.GenerateKey(statePrefix, "debug")
)

// KVStateStore persists companion state in a cache.Service with no
// expiration. Missing keys read as zero values.
type KVStateStore struct {
	kv           cache.Service
	maxBookmarks int
	mu           sync.Mutex
}

func NewKVStateStore(kv cache.Service, maxBookmarks int) *KVStateStore {
	if maxBookmarks <= 0 {
		maxBookmarks = 50
	}
	return &KVStateStore{kv: kv, maxBookmarks: maxBookmarks}
}

func (s *KVStateStore) SessionID(ctx context.Context) (string, error) {
	return s.idFor(ctx, keySessionID)
}

func (s *KVStateStore) ClientID(ctx context.Context) (string, error) {
	return s.idFor(ctx, keyClientID)
}

// idFor returns the stored id or creates and stores a new one.
func (s *KVStateStore) idFor(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	found, err := s.get(ctx, key, &id)
	if err != nil {
		return "", err
	}
	if found && id != "" {
		return id, nil
	}
	id = uuid.New().String()
	if err := s.kv.Set(ctx, key, id, 0); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return id, nil
}

func (s *KVStateStore) PanelPosition(ctx context.Context) (*models.PanelPosition, error) {
	var p models.PanelPosition
	found, err := s.get(ctx, keyPanelPosition, &p)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

func (s *KVStateStore) SetPanelPosition(ctx context.Context, p models.PanelPosition) error {
	return s.kv.Set(ctx, keyPanelPosition, p, 0)
}

func (s *KVStateStore) Bookmarks(ctx context.Context) ([]models.Bookmark, error) {
	var out []models.Bookmark
	if _, err := s.get(ctx, keyBookmarks, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Bookmark{}
	}
	return out, nil
}

// AddBookmark puts b first, replacing any bookmark for the same
// symbol and timeframe, and trims the list to the cap.
func (s *KVStateStore) AddBookmark(ctx context.Context, b models.Bookmark) ([]models.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur []models.Bookmark
	if _, err := s.get(ctx, keyBookmarks, &cur); err != nil {
		return nil, err
	}
	next := make([]models.Bookmark, 0, len(cur)+1)
	next = append(next, b)
	for _, x := range cur {
		if x.Symbol == b.Symbol && x.Timeframe == b.Timeframe {
			continue
		}
		next = append(next, x)
	}
	if len(next) > s.maxBookmarks {
		next = next[:s.maxBookmarks]
	}
	if err := s.kv.Set(ctx, keyBookmarks, next, 0); err != nil {
		return nil, fmt.Errorf("store bookmarks: %w", err)
	}
	return next, nil
}

func (s *KVStateStore) Debug(ctx context.Context) (bool, error) {
	var on bool
	_, err := s.get(ctx, keyDebug, &on)
	return on, err
}

func (s *KVStateStore) SetDebug(ctx context.Context, enabled bool) error {
	return s.kv.Set(ctx, keyDebug, enabled, 0)
}

func (s *KVStateStore) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	err := s.kv.Get(ctx, key, dest)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	return true, nil
}

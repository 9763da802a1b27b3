package history

import (
	"context"
	"fmt"
	"io"

	"chartlens-backend/internal/shared/storage/object"
	"chartlens-backend/internal/shared/telemetry"
)

// Service coordinates the write-through history pair: the local cache is
// written synchronously, the remote store best-effort for signed-in users.
// A remote outage never fails an analysis.
type Service struct {
	local   Repo
	remote  Repo
	objects object.ObjectStore
}

// NewService builds the history service. remote may be nil when no remote
// database is configured.
func NewService(local, remote Repo, objects object.ObjectStore) *Service {
	return &Service{local: local, remote: remote, objects: objects}
}

// Record persists a finished analysis. The local write is authoritative;
// the remote write for authenticated users is attempted and its failure
// logged and swallowed.
func (s *Service) Record(ctx context.Context, e Entry, authed bool) error {
	evicted, err := s.local.Insert(ctx, e)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	s.removeThumbnails(ctx, evicted)

	if authed && s.remote != nil {
		remoteEvicted, err := s.remote.Insert(ctx, e)
		if err != nil {
			telemetry.Warn("history.remote_write_failed", map[string]any{
				"analysis_id": e.ID,
				"error":       err.Error(),
			})
		} else {
			s.removeThumbnails(ctx, remoteEvicted)
		}
	}
	return nil
}

// List returns the owner's history, newest first. Authenticated users read
// the remote store when it has entries; everyone falls back to the local
// cache.
func (s *Service) List(ctx context.Context, userID string, authed bool) ([]Entry, error) {
	if authed && s.remote != nil {
		entries, err := s.remote.List(ctx, userID)
		if err != nil {
			telemetry.Warn("history.remote_read_failed", map[string]any{"error": err.Error()})
		} else if len(entries) > 0 {
			return entries, nil
		}
	}
	return s.local.List(ctx, userID)
}

// Get fetches one entry, preferring the remote store for authenticated
// users. A nil entry with nil error means not found.
func (s *Service) Get(ctx context.Context, userID, id string, authed bool) (*Entry, error) {
	if authed && s.remote != nil {
		e, err := s.remote.Get(ctx, userID, id)
		if err != nil {
			telemetry.Warn("history.remote_read_failed", map[string]any{"error": err.Error()})
		} else if e != nil {
			return e, nil
		}
	}
	return s.local.Get(ctx, userID, id)
}

// OpenThumbnail opens the stored preview image for an entry.
func (s *Service) OpenThumbnail(ctx context.Context, userID, id string, authed bool) (io.ReadCloser, error) {
	e, err := s.Get(ctx, userID, id, authed)
	if err != nil {
		return nil, err
	}
	if e == nil || !e.HasThumbnail() {
		return nil, nil
	}
	return s.objects.Open(ctx, e.ThumbnailKey)
}

// Delete removes one entry from both stores and its thumbnail from the
// object store. It reports whether anything was deleted.
func (s *Service) Delete(ctx context.Context, userID, id string, authed bool) (bool, error) {
	deleted, err := s.local.Delete(ctx, userID, id)
	if err != nil {
		return false, fmt.Errorf("delete history: %w", err)
	}

	if authed && s.remote != nil {
		remoteDeleted, err := s.remote.Delete(ctx, userID, id)
		if err != nil {
			telemetry.Warn("history.remote_delete_failed", map[string]any{"error": err.Error()})
		} else if deleted == nil {
			deleted = remoteDeleted
		}
	}

	if deleted == nil {
		return false, nil
	}
	if deleted.HasThumbnail() {
		s.removeThumbnails(ctx, []string{deleted.ThumbnailKey})
	}
	return true, nil
}

// Clear wipes the owner's history in both stores.
func (s *Service) Clear(ctx context.Context, userID string, authed bool) error {
	thumbs, err := s.local.DeleteAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	s.removeThumbnails(ctx, thumbs)

	if authed && s.remote != nil {
		remoteThumbs, err := s.remote.DeleteAll(ctx, userID)
		if err != nil {
			telemetry.Warn("history.remote_clear_failed", map[string]any{"error": err.Error()})
		} else {
			s.removeThumbnails(ctx, remoteThumbs)
		}
	}
	return nil
}

func (s *Service) removeThumbnails(ctx context.Context, keys []string) {
	if s.objects == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.objects.Delete(ctx, key); err != nil {
			telemetry.Warn("history.thumbnail_delete_failed", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
}

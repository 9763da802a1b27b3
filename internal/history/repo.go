package history

import "context"

// Repo stores bounded per-owner history. Insert evicts the oldest entries
// past the store's limit and returns their thumbnail keys so callers can
// clean up the object store.
type Repo interface {
	Insert(ctx context.Context, e Entry) (evictedThumbnails []string, err error)
	List(ctx context.Context, userID string) ([]Entry, error)
	Get(ctx context.Context, userID, id string) (*Entry, error)
	Delete(ctx context.Context, userID, id string) (*Entry, error)
	DeleteAll(ctx context.Context, userID string) (thumbnailKeys []string, err error)
}

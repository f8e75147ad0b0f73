package turn

import (
	"context"

	"gorm.io/gorm"

	"github.com/pitabwire/frame/datastore/pool"
)

// Store persists managed-mode coturn credentials.
type Store struct {
	pool pool.Pool
}

// NewStore builds a Store backed by pool.
func NewStore(pool pool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) db(ctx context.Context, readOnly bool) *gorm.DB {
	return s.pool.DB(ctx, readOnly)
}

// Put persists a freshly minted credential.
func (s *Store) Put(ctx context.Context, cred *Credential) error {
	return s.db(ctx, false).Create(cred).Error
}

// DeleteByUsername removes a credential, e.g. on Member release.
func (s *Store) DeleteByUsername(ctx context.Context, username string) error {
	return s.db(ctx, false).Where("username = ?", username).Delete(&Credential{}).Error
}

// ExpireBefore removes every credential whose expiry lies before the given
// cutoff. Nothing in this repository schedules it.
func (s *Store) ExpireBefore(ctx context.Context, cutoffUnixSeconds int64) error {
	return s.db(ctx, false).Where("expires_at < to_timestamp(?)", cutoffUnixSeconds).Delete(&Credential{}).Error
}

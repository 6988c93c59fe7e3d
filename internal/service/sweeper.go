package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type OrphanLister interface {
	ListOrphans(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

type IdentityDeleter interface {
	AdminDeleteUser(ctx context.Context, identityID string) error
}

// Sweeper deletes identities that never got a profile. These are left behind
// when a sign-in probe crashes between the code exchange and its cleanup.
type Sweeper struct {
	identities OrphanLister
	deleter    IdentityDeleter
	age        time.Duration
	batch      int
	log        zerolog.Logger
}

func NewSweeper(identities OrphanLister, deleter IdentityDeleter, age time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		identities: identities,
		deleter:    deleter,
		age:        age,
		batch:      100,
		log:        log,
	}
}

func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	orphans, err := s.identities.ListOrphans(ctx, time.Now().Add(-s.age), s.batch)
	if err != nil {
		return 0, fmt.Errorf("list orphans: %w", err)
	}

	removed := 0
	for _, id := range orphans {
		if err := s.deleter.AdminDeleteUser(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("user_id", id).Msg("sweep delete failed")
			continue
		}
		removed++
	}
	return removed, nil
}

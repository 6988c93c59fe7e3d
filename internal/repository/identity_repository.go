package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlouiLouai/educ/internal/ids"
	"github.com/AlouiLouai/educ/internal/models"
)

var ErrIdentityNotFound = errors.New("identity not found")

type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// UpsertFromProvider records a sign-in. The returned bool reports whether the
// row was inserted by this call. Provider-sourced user metadata is refreshed on
// every sign-in; app metadata is left untouched.
func (r *IdentityRepository) UpsertFromProvider(ctx context.Context, user models.ProviderUser) (models.Identity, bool, error) {
	const query = `
		INSERT INTO identities (
			id, provider, provider_subject, email, user_metadata, app_metadata, created_at, updated_at, last_sign_in_at
		) VALUES (
			$1, $2, $3, $4, $5, '{}'::jsonb, NOW(), NOW(), NOW()
		)
		ON CONFLICT (provider, provider_subject)
		DO UPDATE SET
			email = EXCLUDED.email,
			user_metadata = identities.user_metadata || EXCLUDED.user_metadata,
			updated_at = NOW(),
			last_sign_in_at = NOW()
		RETURNING id, provider, provider_subject, email, user_metadata, app_metadata,
		          created_at, updated_at, last_sign_in_at, (xmax = 0) AS inserted
	`

	meta, err := json.Marshal(models.UserMetadata{
		FullName:   user.Name,
		Name:       user.Name,
		GivenName:  user.GivenName,
		FamilyName: user.FamilyName,
		AvatarURL:  user.Picture,
		Picture:    user.Picture,
	})
	if err != nil {
		return models.Identity{}, false, fmt.Errorf("encode user metadata: %w", err)
	}

	row := r.pool.QueryRow(ctx, query,
		ids.NewUUID(),
		user.Provider,
		user.Subject,
		user.Email,
		meta,
	)

	var inserted bool
	identity, err := scanIdentity(row, &inserted)
	if err != nil {
		return models.Identity{}, false, err
	}
	return identity, inserted, nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (models.Identity, error) {
	const query = `
		SELECT id, provider, provider_subject, email, user_metadata, app_metadata,
		       created_at, updated_at, last_sign_in_at
		FROM identities WHERE id = $1
	`

	identity, err := scanIdentity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Identity{}, ErrIdentityNotFound
		}
		return models.Identity{}, err
	}
	return identity, nil
}

func (r *IdentityRepository) UpdateAppMetadata(ctx context.Context, id string, meta models.AppMetadata) error {
	const query = `
		UPDATE identities
		SET app_metadata = app_metadata || $2::jsonb,
		    updated_at = NOW()
		WHERE id = $1
	`

	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode app metadata: %w", err)
	}

	cmd, err := r.pool.Exec(ctx, query, id, payload)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func (r *IdentityRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM identities WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// ListOrphans returns identities older than the cutoff that never got a profile.
func (r *IdentityRepository) ListOrphans(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	const query = `
		SELECT i.id
		FROM identities i
		LEFT JOIN profiles p ON p.id = i.id
		WHERE p.id IS NULL AND i.created_at < $1
		ORDER BY i.created_at
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanIdentity(row pgx.Row, extra ...any) (models.Identity, error) {
	var (
		identity models.Identity
		userMeta []byte
		appMeta  []byte
	)
	dest := []any{
		&identity.ID,
		&identity.Provider,
		&identity.ProviderSubject,
		&identity.Email,
		&userMeta,
		&appMeta,
		&identity.CreatedAt,
		&identity.UpdatedAt,
		&identity.LastSignInAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return models.Identity{}, err
	}
	if len(userMeta) > 0 {
		if err := json.Unmarshal(userMeta, &identity.UserMetadata); err != nil {
			return models.Identity{}, fmt.Errorf("decode user metadata: %w", err)
		}
	}
	if len(appMeta) > 0 {
		if err := json.Unmarshal(appMeta, &identity.AppMetadata); err != nil {
			return models.Identity{}, fmt.Errorf("decode app metadata: %w", err)
		}
	}
	return identity, nil
}

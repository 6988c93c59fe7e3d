package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/AlouiLouai/educ/internal/models"
)

type ProfileDirectory interface {
	GetByID(ctx context.Context, id string) (models.Profile, error)
	List(ctx context.Context, role models.Role, limit, offset int) ([]models.Profile, error)
	CountByRole(ctx context.Context) (map[models.Role]int, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
}

type DocumentCatalog interface {
	List(ctx context.Context, limit, offset int) ([]models.Document, error)
	ListByTeacher(ctx context.Context, teacherID string, limit, offset int) ([]models.Document, error)
	CountByStatus(ctx context.Context, teacherID string) (map[models.DocumentStatus]int, error)
}

type MetadataWriter interface {
	UpdateAppMetadata(ctx context.Context, identityID string, meta models.AppMetadata) error
}

type PlatformStats struct {
	ProfilesByRole    map[models.Role]int           `json:"profilesByRole"`
	DocumentsByStatus map[models.DocumentStatus]int `json:"documentsByStatus"`
}

type TeacherDashboard struct {
	Documents []models.Document
	Counts    map[models.DocumentStatus]int
}

type AdminDashboard struct {
	Stats  PlatformStats
	Recent []models.Document
}

type AdminService struct {
	profiles ProfileDirectory
	docs     DocumentCatalog
	meta     MetadataWriter
	roles    RoleCache
	log      zerolog.Logger
}

func NewAdminService(profiles ProfileDirectory, docs DocumentCatalog, meta MetadataWriter, roles RoleCache, log zerolog.Logger) *AdminService {
	return &AdminService{
		profiles: profiles,
		docs:     docs,
		meta:     meta,
		roles:    roles,
		log:      log,
	}
}

func (s *AdminService) Stats(ctx context.Context) (PlatformStats, error) {
	var stats PlatformStats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.profiles.CountByRole(ctx)
		if err != nil {
			return fmt.Errorf("count profiles: %w", err)
		}
		stats.ProfilesByRole = counts
		return nil
	})
	g.Go(func() error {
		counts, err := s.docs.CountByStatus(ctx, "")
		if err != nil {
			return fmt.Errorf("count documents: %w", err)
		}
		stats.DocumentsByStatus = counts
		return nil
	})
	if err := g.Wait(); err != nil {
		return PlatformStats{}, err
	}
	return stats, nil
}

func (s *AdminService) AdminDashboard(ctx context.Context) (AdminDashboard, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return AdminDashboard{}, err
	}
	recent, err := s.docs.List(ctx, 10, 0)
	if err != nil {
		return AdminDashboard{}, fmt.Errorf("recent documents: %w", err)
	}
	return AdminDashboard{Stats: stats, Recent: recent}, nil
}

func (s *AdminService) TeacherDashboard(ctx context.Context, teacherID string) (TeacherDashboard, error) {
	var dash TeacherDashboard
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.docs.ListByTeacher(ctx, teacherID, 50, 0)
		dash.Documents = docs
		return err
	})
	g.Go(func() error {
		counts, err := s.docs.CountByStatus(ctx, teacherID)
		dash.Counts = counts
		return err
	})
	if err := g.Wait(); err != nil {
		return TeacherDashboard{}, fmt.Errorf("teacher dashboard: %w", err)
	}
	return dash, nil
}

func (s *AdminService) ListProfiles(ctx context.Context, role models.Role, limit, offset int) ([]models.Profile, error) {
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	limit, offset = pageBounds(limit, offset)
	return s.profiles.List(ctx, role, limit, offset)
}

func (s *AdminService) ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error) {
	limit, offset = pageBounds(limit, offset)
	return s.docs.List(ctx, limit, offset)
}

// SetRole is the only path that changes a stored role. The identity metadata
// is re-stamped and the cached role dropped so the gate sees the change.
func (s *AdminService) SetRole(ctx context.Context, identityID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if err := s.profiles.UpdateRole(ctx, identityID, role); err != nil {
		return err
	}
	if err := s.meta.UpdateAppMetadata(ctx, identityID, models.AppMetadata{Role: role, Profile: true}); err != nil {
		return fmt.Errorf("update app metadata: %w", err)
	}
	if err := s.roles.Delete(ctx, identityID); err != nil {
		s.log.Warn().Err(err).Str("user_id", identityID).Msg("drop cached role failed")
	}
	s.log.Info().Str("user_id", identityID).Str("role", string(role)).Msg("role changed")
	return nil
}

// Profile returns the stored profile for the connected-user view.
func (s *AdminService) Profile(ctx context.Context, identityID string) (models.Profile, error) {
	return s.profiles.GetByID(ctx, identityID)
}

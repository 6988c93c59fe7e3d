package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlouiLouai/educ/internal/models"
)

type fakeDirectory struct {
	roles   map[string]models.Role
	updated map[string]models.Role
}

func (f *fakeDirectory) GetByID(_ context.Context, id string) (models.Profile, error) {
	return models.Profile{ID: id, Role: f.roles[id]}, nil
}

func (f *fakeDirectory) List(_ context.Context, role models.Role, limit, _ int) ([]models.Profile, error) {
	var out []models.Profile
	for id, r := range f.roles {
		if role == "" || r == role {
			out = append(out, models.Profile{ID: id, Role: r})
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDirectory) CountByRole(context.Context) (map[models.Role]int, error) {
	counts := map[models.Role]int{}
	for _, r := range f.roles {
		counts[r]++
	}
	return counts, nil
}

func (f *fakeDirectory) UpdateRole(_ context.Context, id string, role models.Role) error {
	f.updated[id] = role
	f.roles[id] = role
	return nil
}

type fakeCatalog struct {
	docs     []models.Document
	countErr error
}

func (f *fakeCatalog) List(_ context.Context, limit, _ int) ([]models.Document, error) {
	if len(f.docs) > limit {
		return f.docs[:limit], nil
	}
	return f.docs, nil
}

func (f *fakeCatalog) ListByTeacher(_ context.Context, teacherID string, _, _ int) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f.docs {
		if d.TeacherID == teacherID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeCatalog) CountByStatus(_ context.Context, teacherID string) (map[models.DocumentStatus]int, error) {
	if f.countErr != nil {
		return nil, f.countErr
	}
	counts := map[models.DocumentStatus]int{}
	for _, d := range f.docs {
		if teacherID == "" || d.TeacherID == teacherID {
			counts[d.Status]++
		}
	}
	return counts, nil
}

type metaRecorder struct {
	updates map[string]models.AppMetadata
}

func (m *metaRecorder) UpdateAppMetadata(_ context.Context, id string, meta models.AppMetadata) error {
	m.updates[id] = meta
	return nil
}

func newAdminFixture() (*AdminService, *fakeDirectory, *fakeCatalog, *metaRecorder, *fakeRoles) {
	dir := &fakeDirectory{
		roles:   map[string]models.Role{"s-1": models.RoleStudent, "s-2": models.RoleStudent, "t-1": models.RoleTeacher},
		updated: map[string]models.Role{},
	}
	catalog := &fakeCatalog{docs: []models.Document{
		{ID: "d-1", TeacherID: "t-1", Status: models.DocumentStatusDraft},
		{ID: "d-2", TeacherID: "t-1", Status: models.DocumentStatusPublished},
		{ID: "d-3", TeacherID: "t-9", Status: models.DocumentStatusPublished},
	}}
	meta := &metaRecorder{updates: map[string]models.AppMetadata{}}
	roles := newFakeRoles()
	return NewAdminService(dir, catalog, meta, roles, zerolog.Nop()), dir, catalog, meta, roles
}

func TestAdminStats(t *testing.T) {
	svc, _, _, _, _ := newAdminFixture()

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ProfilesByRole[models.RoleStudent])
	assert.Equal(t, 1, stats.ProfilesByRole[models.RoleTeacher])
	assert.Equal(t, 2, stats.DocumentsByStatus[models.DocumentStatusPublished])
}

func TestAdminStatsPropagatesErrors(t *testing.T) {
	svc, _, catalog, _, _ := newAdminFixture()
	catalog.countErr = errors.New("db down")

	_, err := svc.Stats(context.Background())
	assert.Error(t, err)
}

func TestTeacherDashboard(t *testing.T) {
	svc, _, _, _, _ := newAdminFixture()

	dash, err := svc.TeacherDashboard(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Len(t, dash.Documents, 2)
	assert.Equal(t, 1, dash.Counts[models.DocumentStatusDraft])
	assert.Equal(t, 1, dash.Counts[models.DocumentStatusPublished])
}

func TestSetRole(t *testing.T) {
	svc, dir, _, meta, roles := newAdminFixture()
	ctx := context.Background()
	require.NoError(t, roles.Set(ctx, "s-1", models.RoleStudent))

	require.NoError(t, svc.SetRole(ctx, "s-1", models.RoleTeacher))

	assert.Equal(t, models.RoleTeacher, dir.updated["s-1"])
	assert.Equal(t, models.AppMetadata{Role: models.RoleTeacher, Profile: true}, meta.updates["s-1"])
	assert.NotContains(t, roles.set, "s-1")

	assert.Error(t, svc.SetRole(ctx, "s-1", "owner"))
}

type fakeOrphans struct {
	ids    []string
	cutoff time.Time
}

func (f *fakeOrphans) ListOrphans(_ context.Context, olderThan time.Time, _ int) ([]string, error) {
	f.cutoff = olderThan
	return f.ids, nil
}

type flakyDeleter struct {
	deleted []string
}

func (d *flakyDeleter) AdminDeleteUser(_ context.Context, id string) error {
	if id == "bad" {
		return errors.New("locked")
	}
	d.deleted = append(d.deleted, id)
	return nil
}

func TestSweeper(t *testing.T) {
	orphans := &fakeOrphans{ids: []string{"o-1", "bad", "o-2"}}
	deleter := &flakyDeleter{}
	sweeper := NewSweeper(orphans, deleter, time.Hour, zerolog.Nop())

	removed, err := sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"o-1", "o-2"}, deleter.deleted)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), orphans.cutoff, time.Minute)
}

package service

import (
	"context"
	"sync"

	"github.com/AlouiLouai/educ/internal/identity"
	"github.com/AlouiLouai/educ/internal/models"
	"github.com/AlouiLouai/educ/internal/repository"
	"github.com/AlouiLouai/educ/internal/tasks"
)

type fakeProvider struct {
	mu          sync.Mutex
	session     identity.Session
	exchangeErr error
	states      map[string]identity.Hints
	users       map[string]models.Identity
	getUserErr  error
	deleteErr   error

	exchanged   int
	signedOut   []string
	deleted     []string
	metaUpdates []models.AppMetadata
}

func newFakeProvider(user models.Identity, created bool) *fakeProvider {
	return &fakeProvider{
		session: identity.Session{Token: "tok-1", Identity: user, Created: created},
		states:  map[string]identity.Hints{},
		users:   map[string]models.Identity{"tok-1": user},
	}
}

func (f *fakeProvider) ConsumeState(_ context.Context, state string) (identity.Hints, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hints, ok := f.states[state]
	if !ok {
		return identity.Hints{}, identity.ErrInvalidState
	}
	delete(f.states, state)
	return hints, nil
}

func (f *fakeProvider) ExchangeCodeForSession(_ context.Context, _ string) (identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanged++
	if f.exchangeErr != nil {
		return identity.Session{}, f.exchangeErr
	}
	return f.session, nil
}

func (f *fakeProvider) GetUser(_ context.Context, token string) (models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getUserErr != nil {
		return models.Identity{}, f.getUserErr
	}
	user, ok := f.users[token]
	if !ok {
		return models.Identity{}, identity.ErrSessionNotFound
	}
	return user, nil
}

func (f *fakeProvider) UpdateAppMetadata(_ context.Context, _ string, meta models.AppMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaUpdates = append(f.metaUpdates, meta)
	f.session.Identity.AppMetadata = meta
	return nil
}

func (f *fakeProvider) SignOut(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedOut = append(f.signedOut, token)
	return nil
}

func (f *fakeProvider) AdminDeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeProfiles struct {
	mu        sync.Mutex
	rows      map[string]models.Profile
	getErr    error
	createErr error
	// raceWinner is inserted just before a create, simulating a concurrent callback.
	raceWinner *models.Profile

	creates int
	deletes []string
}

func newFakeProfiles(existing ...models.Profile) *fakeProfiles {
	f := &fakeProfiles{rows: map[string]models.Profile{}}
	for _, p := range existing {
		f.rows[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return models.Profile{}, f.getErr
	}
	p, ok := f.rows[id]
	if !ok {
		return models.Profile{}, repository.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfiles) CreateIfAbsent(_ context.Context, p models.Profile) (models.Profile, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return models.Profile{}, false, f.createErr
	}
	if f.raceWinner != nil {
		f.rows[f.raceWinner.ID] = *f.raceWinner
		f.raceWinner = nil
	}
	if _, ok := f.rows[p.ID]; ok {
		return models.Profile{}, false, nil
	}
	f.creates++
	f.rows[p.ID] = p
	return p, true, nil
}

func (f *fakeProfiles) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	delete(f.rows, id)
	return nil
}

type fakeRoles struct {
	mu      sync.Mutex
	set     map[string]models.Role
	deleted []string
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{set: map[string]models.Role{}}
}

func (f *fakeRoles) Set(_ context.Context, id string, role models.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set[id] = role
	return nil
}

func (f *fakeRoles) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	delete(f.set, id)
	return nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []tasks.Task
}

func (f *fakeQueue) Enqueue(ctx context.Context, task tasks.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return nil
}

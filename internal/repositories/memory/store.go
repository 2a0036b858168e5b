// Package memory keeps every repository in process. It backs development runs with no hosted
// store configured, and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"obogportal/internal/models"
	"obogportal/internal/repositories"
)

type Store struct {
	mu         sync.RWMutex
	users      map[string]*models.User // by id
	profiles   map[string]*models.Profile
	otpLogs    []*models.OTPLog
	nextLogID  int64
	challenges map[string]*models.OTPChallenge // by email|purpose
	posts      map[int64]*models.Post
}

func NewStore() *Store {
	return &Store{
		users:      map[string]*models.User{},
		profiles:   map[string]*models.Profile{},
		challenges: map[string]*models.OTPChallenge{},
		posts:      map[int64]*models.Post{},
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users:      userRepo{s},
		Profiles:   profileRepo{s},
		OTPLogs:    otpLogRepo{s},
		Challenges: challengeRepo{s},
		Posts:      postRepo{s},
	}
}

// AddUser inserts a user and, when displayName is set, its profile. A blank id gets a uuid.
func (s *Store) AddUser(u models.User, displayName string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	s.users[u.ID] = &u
	if displayName != "" {
		s.profiles[u.ID] = &models.Profile{UserID: u.ID, DisplayName: displayName}
	}
	return &u
}

func (s *Store) PutProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = &p
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type userRepo struct{ s *Store }

func (r userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) List(_ context.Context, limit, offset int) ([]*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, limit, offset), nil
}

type profileRepo struct{ s *Store }

func (r profileRepo) GetByUserID(_ context.Context, userID string) (*models.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r profileRepo) List(_ context.Context, limit, offset int) ([]*models.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.Profile, 0, len(r.s.profiles))
	for _, p := range r.s.profiles {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return page(out, limit, offset), nil
}

type otpLogRepo struct{ s *Store }

func (r otpLogRepo) Create(_ context.Context, l *models.OTPLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextLogID++
	l.ID = r.s.nextLogID
	cp := *l
	r.s.otpLogs = append(r.s.otpLogs, &cp)
	return nil
}

func (r otpLogRepo) ListRecent(_ context.Context, limit int) ([]*models.OTPLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.OTPLog, 0, len(r.s.otpLogs))
	for i := len(r.s.otpLogs) - 1; i >= 0; i-- {
		cp := *r.s.otpLogs[i]
		out = append(out, &cp)
	}
	return page(out, limit, 0), nil
}

type challengeRepo struct{ s *Store }

func challengeKey(email, purpose string) string {
	return email + "|" + purpose
}

func (r challengeRepo) Save(_ context.Context, ch *models.OTPChallenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ch.Attempts = 0
	cp := *ch
	r.s.challenges[challengeKey(ch.Email, ch.Purpose)] = &cp
	return nil
}

func (r challengeRepo) Get(_ context.Context, email, purpose string) (*models.OTPChallenge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ch, ok := r.s.challenges[challengeKey(email, purpose)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

// byID must be called with the lock held.
func (r challengeRepo) byID(id string) (string, *models.OTPChallenge) {
	for k, ch := range r.s.challenges {
		if ch.ID == id {
			return k, ch
		}
	}
	return "", nil
}

func (r challengeRepo) IncrementAttempts(_ context.Context, id string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ch := r.byID(id)
	if ch == nil {
		return 0, repositories.ErrNotFound
	}
	ch.Attempts++
	return ch.Attempts, nil
}

func (r challengeRepo) Consume(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k, ch := r.byID(id)
	if ch == nil {
		return repositories.ErrNotFound
	}
	delete(r.s.challenges, k)
	return nil
}

type postRepo struct{ s *Store }

func (r postRepo) Create(_ context.Context, p *models.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.posts[p.ID]; exists {
		return repositories.ErrConflict
	}
	cp := *p
	r.s.posts[p.ID] = &cp
	return nil
}

func (r postRepo) GetByID(_ context.Context, id int64) (*models.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r postRepo) List(_ context.Context, limit, offset int) ([]*models.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.Post, 0, len(r.s.posts))
	for _, p := range r.s.posts {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, limit, offset), nil
}

func (r postRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.posts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.posts, id)
	return nil
}

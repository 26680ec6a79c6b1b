package school

import (
	"context"
	"sort"
	"sync"

	"classroll/internal/apperr"
)

// Directory stores users and classes. Create assigns id = max(id)+1.
// Get, Update and Delete return apperr.ErrNotFound for unknown ids.
type Directory interface {
	ListUsers(ctx context.Context, role Role) ([]User, error)
	GetUser(ctx context.Context, id int) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, u User) (User, error)
	DeleteUser(ctx context.Context, id int) error

	ListClasses(ctx context.Context) ([]Class, error)
	GetClass(ctx context.Context, id int) (Class, error)
	CreateClass(ctx context.Context, c Class) (Class, error)
	UpdateClass(ctx context.Context, c Class) (Class, error)
	DeleteClass(ctx context.Context, id int) error
}

// MemDirectory keeps users and classes in process memory.
type MemDirectory struct {
	mu      sync.RWMutex
	users   map[int]User
	classes map[int]Class
}

// NewMemDirectory creates a directory seeded with users and classes.
func NewMemDirectory(users []User, classes []Class) *MemDirectory {
	d := &MemDirectory{users: make(map[int]User), classes: make(map[int]Class)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	for _, c := range classes {
		d.classes[c.ID] = cloneClass(c)
	}
	return d
}

func (d *MemDirectory) ListUsers(_ context.Context, role Role) ([]User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *MemDirectory) GetUser(_ context.Context, id int) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return User{}, apperr.ErrNotFound
}

func (d *MemDirectory) CreateUser(_ context.Context, u User) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u.ID = 1
	for id := range d.users {
		if id >= u.ID {
			u.ID = id + 1
		}
	}
	d.users[u.ID] = u
	return u, nil
}

func (d *MemDirectory) UpdateUser(_ context.Context, u User) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.users[u.ID]
	if !ok {
		return User{}, apperr.ErrNotFound
	}
	u.CreatedAt = cur.CreatedAt
	d.users[u.ID] = u
	return u, nil
}

func (d *MemDirectory) DeleteUser(_ context.Context, id int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(d.users, id)
	return nil
}

func (d *MemDirectory) ListClasses(_ context.Context) ([]Class, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Class, 0, len(d.classes))
	for _, c := range d.classes {
		out = append(out, cloneClass(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *MemDirectory) GetClass(_ context.Context, id int) (Class, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if c, ok := d.classes[id]; ok {
		return cloneClass(c), nil
	}
	return Class{}, apperr.ErrNotFound
}

func (d *MemDirectory) CreateClass(_ context.Context, c Class) (Class, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c.ID = 1
	for id := range d.classes {
		if id >= c.ID {
			c.ID = id + 1
		}
	}
	d.classes[c.ID] = cloneClass(c)
	return c, nil
}

func (d *MemDirectory) UpdateClass(_ context.Context, c Class) (Class, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.classes[c.ID]
	if !ok {
		return Class{}, apperr.ErrNotFound
	}
	c.CreatedAt = cur.CreatedAt
	d.classes[c.ID] = cloneClass(c)
	return c, nil
}

func (d *MemDirectory) DeleteClass(_ context.Context, id int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.classes[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(d.classes, id)
	return nil
}

func cloneClass(c Class) Class {
	c.StudentIDs = append([]int{}, c.StudentIDs...)
	c.TeacherIDs = append([]int{}, c.TeacherIDs...)
	return c
}

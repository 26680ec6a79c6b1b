package recordclient

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"classroll/internal/apperr"
	"classroll/internal/school"
)

type userFields struct {
	ID    int    `json:"Id,omitempty"`
	Name  string `json:"Name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

type classFields struct {
	ID         int    `json:"Id,omitempty"`
	Name       string `json:"Name"`
	Grade      string `json:"grade"`
	Subject    string `json:"subject"`
	Room       string `json:"room"`
	Schedule   string `json:"schedule"`
	StudentIDs string `json:"studentIds"`
	TeacherIDs string `json:"teacherIds"`
}

// Directory keeps users and classes on the record platform. Platform
// payloads go through school.NormalizeUser and school.NormalizeClass.
type Directory struct {
	c *Client
}

// NewDirectory creates a directory backed by c.
func NewDirectory(c *Client) *Directory {
	return &Directory{c: c}
}

func (d *Directory) ListUsers(ctx context.Context, role school.Role) ([]school.User, error) {
	var where []Condition
	if role != "" {
		where = append(where, Eq("role", role))
	}
	items, err := d.c.Fetch(ctx, EntityUser, where...)
	if err != nil {
		return nil, err
	}
	out := make([]school.User, 0, len(items))
	for _, it := range items {
		u, err := decodeUser(it)
		if err != nil {
			return nil, err
		}
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *Directory) GetUser(ctx context.Context, id int) (school.User, error) {
	raw, err := d.c.GetByID(ctx, EntityUser, id)
	if err != nil {
		return school.User{}, err
	}
	return decodeUser(raw)
}

func (d *Directory) CreateUser(ctx context.Context, u school.User) (school.User, error) {
	raw, err := d.c.Create(ctx, EntityUser, toUserFields(u))
	if err != nil {
		return school.User{}, err
	}
	return decodeUser(raw)
}

func (d *Directory) UpdateUser(ctx context.Context, u school.User) (school.User, error) {
	cur, err := d.GetUser(ctx, u.ID)
	if err != nil {
		return school.User{}, err
	}
	f := toUserFields(u)
	f.ID = u.ID
	if _, err := d.c.Update(ctx, EntityUser, f); err != nil {
		return school.User{}, err
	}
	u.CreatedAt = cur.CreatedAt
	return u, nil
}

func (d *Directory) DeleteUser(ctx context.Context, id int) error {
	if _, err := d.GetUser(ctx, id); err != nil {
		return err
	}
	return d.c.Delete(ctx, EntityUser, id)
}

func (d *Directory) ListClasses(ctx context.Context) ([]school.Class, error) {
	items, err := d.c.Fetch(ctx, EntityClass)
	if err != nil {
		return nil, err
	}
	out := make([]school.Class, 0, len(items))
	for _, it := range items {
		c, err := decodeClass(it)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *Directory) GetClass(ctx context.Context, id int) (school.Class, error) {
	raw, err := d.c.GetByID(ctx, EntityClass, id)
	if err != nil {
		return school.Class{}, err
	}
	return decodeClass(raw)
}

func (d *Directory) CreateClass(ctx context.Context, c school.Class) (school.Class, error) {
	raw, err := d.c.Create(ctx, EntityClass, toClassFields(c))
	if err != nil {
		return school.Class{}, err
	}
	return decodeClass(raw)
}

func (d *Directory) UpdateClass(ctx context.Context, c school.Class) (school.Class, error) {
	cur, err := d.GetClass(ctx, c.ID)
	if err != nil {
		return school.Class{}, err
	}
	f := toClassFields(c)
	f.ID = c.ID
	if _, err := d.c.Update(ctx, EntityClass, f); err != nil {
		return school.Class{}, err
	}
	c.CreatedAt = cur.CreatedAt
	return c, nil
}

func (d *Directory) DeleteClass(ctx context.Context, id int) error {
	if _, err := d.GetClass(ctx, id); err != nil {
		return err
	}
	return d.c.Delete(ctx, EntityClass, id)
}

func toUserFields(u school.User) userFields {
	return userFields{Name: u.Name, Email: u.Email, Phone: u.Phone, Role: string(u.Role)}
}

func toClassFields(c school.Class) classFields {
	return classFields{
		Name:       c.Name,
		Grade:      c.Grade,
		Subject:    c.Subject,
		Room:       c.Room,
		Schedule:   c.Schedule,
		StudentIDs: joinIDs(c.StudentIDs),
		TeacherIDs: joinIDs(c.TeacherIDs),
	}
}

func decodeUser(raw json.RawMessage) (school.User, error) {
	var ru school.RawUser
	if err := json.Unmarshal(raw, &ru); err != nil {
		return school.User{}, apperr.Unavailable("decode user", err)
	}
	u, err := school.NormalizeUser(ru)
	if err != nil {
		return school.User{}, apperr.Unavailable("decode user", err)
	}
	return u, nil
}

func decodeClass(raw json.RawMessage) (school.Class, error) {
	var rc school.RawClass
	if err := json.Unmarshal(raw, &rc); err != nil {
		return school.Class{}, apperr.Unavailable("decode class", err)
	}
	c, err := school.NormalizeClass(rc)
	if err != nil {
		return school.Class{}, apperr.Unavailable("decode class", err)
	}
	return c, nil
}

func joinIDs(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}

package school

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawUser is a user as delivered by the record platform. Lookup fields may be
// plain values or objects of the form {"Id": 3, "Name": "..."}.
type RawUser struct {
	ID        json.RawMessage `json:"Id"`
	Name      json.RawMessage `json:"Name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	Role      json.RawMessage `json:"role"`
	CreatedOn string          `json:"CreatedOn"`
}

// RawClass is a class as delivered by the record platform. Member lists may
// be JSON arrays or comma separated strings.
type RawClass struct {
	ID         json.RawMessage `json:"Id"`
	Name       json.RawMessage `json:"Name"`
	Grade      json.RawMessage `json:"grade"`
	Subject    string          `json:"subject"`
	Room       string          `json:"room"`
	Schedule   string          `json:"schedule"`
	StudentIDs json.RawMessage `json:"studentIds"`
	TeacherIDs json.RawMessage `json:"teacherIds"`
	CreatedOn  string          `json:"CreatedOn"`
}

// NormalizeUser converts a platform user into the strict internal form.
func NormalizeUser(raw RawUser) (User, error) {
	id, err := FlexInt(raw.ID)
	if err != nil {
		return User{}, fmt.Errorf("user id: %w", err)
	}
	name, err := LookupString(raw.Name)
	if err != nil {
		return User{}, fmt.Errorf("user %d name: %w", id, err)
	}
	roleName, err := LookupString(raw.Role)
	if err != nil {
		return User{}, fmt.Errorf("user %d role: %w", id, err)
	}
	role := Role(strings.ToLower(strings.TrimSpace(roleName)))
	if !role.Valid() {
		return User{}, fmt.Errorf("user %d: unknown role %q", id, roleName)
	}
	return User{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Email:     strings.ToLower(strings.TrimSpace(raw.Email)),
		Phone:     strings.TrimSpace(raw.Phone),
		Role:      role,
		CreatedAt: parseTime(raw.CreatedOn),
	}, nil
}

// NormalizeClass converts a platform class into the strict internal form.
func NormalizeClass(raw RawClass) (Class, error) {
	id, err := FlexInt(raw.ID)
	if err != nil {
		return Class{}, fmt.Errorf("class id: %w", err)
	}
	name, err := LookupString(raw.Name)
	if err != nil {
		return Class{}, fmt.Errorf("class %d name: %w", id, err)
	}
	grade, err := LookupString(raw.Grade)
	if err != nil {
		return Class{}, fmt.Errorf("class %d grade: %w", id, err)
	}
	students, err := FlexIntList(raw.StudentIDs)
	if err != nil {
		return Class{}, fmt.Errorf("class %d students: %w", id, err)
	}
	teachers, err := FlexIntList(raw.TeacherIDs)
	if err != nil {
		return Class{}, fmt.Errorf("class %d teachers: %w", id, err)
	}
	return Class{
		ID:         id,
		Name:       strings.TrimSpace(name),
		Grade:      grade,
		Subject:    raw.Subject,
		Room:       raw.Room,
		Schedule:   raw.Schedule,
		StudentIDs: students,
		TeacherIDs: teachers,
		CreatedAt:  parseTime(raw.CreatedOn),
	}, nil
}

// LookupString accepts "x", 12, {"Name": "x"} or null.
func LookupString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case '{':
		var obj struct {
			Name json.RawMessage `json:"Name"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", err
		}
		return LookupString(obj.Name)
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("unsupported value %s", raw)
		}
		return n.String(), nil
	}
}

// FlexInt accepts 3, "3" or {"Id": 3}.
func FlexInt(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("missing")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.Atoi(strings.TrimSpace(s))
	case '{':
		var obj struct {
			ID json.RawMessage `json:"Id"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, err
		}
		return FlexInt(obj.ID)
	default:
		var n int
		err := json.Unmarshal(raw, &n)
		return n, err
	}
}

// FlexIntList accepts [1, "2", {"Id": 3}], "1,2,3" or null.
func FlexIntList(raw json.RawMessage) ([]int, error) {
	raw = bytes.TrimSpace(raw)
	out := []int{}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	for _, it := range items {
		n, err := FlexInt(it)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

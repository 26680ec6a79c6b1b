package school

import "time"

// Role is a user's role in the school.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleParent, RoleStudent:
		return true
	}
	return false
}

// User is a person known to the dashboard.
type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserInput is the validated payload for creating or replacing a user.
type UserInput struct {
	Name  string `json:"name" yaml:"name" validate:"required,max=200"`
	Email string `json:"email" yaml:"email" validate:"omitempty,email"`
	Phone string `json:"phone" yaml:"phone" validate:"omitempty,max=40"`
	Role  string `json:"role" yaml:"role" validate:"required,oneof=admin teacher parent student"`
}

// Class is a taught group of students.
type Class struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Grade      string    `json:"grade"`
	Subject    string    `json:"subject"`
	Room       string    `json:"room"`
	Schedule   string    `json:"schedule"`
	StudentIDs []int     `json:"student_ids"`
	TeacherIDs []int     `json:"teacher_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// ClassInput is the validated payload for creating or replacing a class.
type ClassInput struct {
	Name       string `json:"name" yaml:"name" validate:"required,max=200"`
	Grade      string `json:"grade" yaml:"grade"`
	Subject    string `json:"subject" yaml:"subject"`
	Room       string `json:"room" yaml:"room"`
	Schedule   string `json:"schedule" yaml:"schedule"`
	StudentIDs []int  `json:"student_ids" yaml:"student_ids" validate:"dive,gt=0"`
	TeacherIDs []int  `json:"teacher_ids" yaml:"teacher_ids" validate:"dive,gt=0"`
}

// Roster lists the members of a class.
type Roster struct {
	ClassID    int   `json:"class_id"`
	StudentIDs []int `json:"student_ids"`
	TeacherIDs []int `json:"teacher_ids"`
}

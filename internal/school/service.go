package school

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"classroll/internal/apperr"
)

// Service validates input and applies it to a Directory.
type Service struct {
	dir      Directory
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a service backed by dir.
func NewService(dir Directory) *Service {
	return &Service{dir: dir, validate: validator.New(), now: time.Now}
}

// ListUsers returns every user, or only those with role when it is set.
func (s *Service) ListUsers(ctx context.Context, role string) ([]User, error) {
	r := Role(strings.ToLower(strings.TrimSpace(role)))
	if r != "" && !r.Valid() {
		return nil, apperr.Invalid("role", "must be one of admin, teacher, parent, student")
	}
	return s.dir.ListUsers(ctx, r)
}

func (s *Service) GetUser(ctx context.Context, id int) (User, error) {
	return s.dir.GetUser(ctx, id)
}

func (s *Service) CreateUser(ctx context.Context, in UserInput) (User, error) {
	u, err := s.userFromInput(in)
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = s.now().UTC()
	return s.dir.CreateUser(ctx, u)
}

// UpdateUser replaces the editable fields of user id.
func (s *Service) UpdateUser(ctx context.Context, id int, in UserInput) (User, error) {
	u, err := s.userFromInput(in)
	if err != nil {
		return User{}, err
	}
	u.ID = id
	return s.dir.UpdateUser(ctx, u)
}

func (s *Service) DeleteUser(ctx context.Context, id int) error {
	return s.dir.DeleteUser(ctx, id)
}

func (s *Service) ListClasses(ctx context.Context) ([]Class, error) {
	return s.dir.ListClasses(ctx)
}

func (s *Service) GetClass(ctx context.Context, id int) (Class, error) {
	return s.dir.GetClass(ctx, id)
}

func (s *Service) CreateClass(ctx context.Context, in ClassInput) (Class, error) {
	c, err := s.classFromInput(in)
	if err != nil {
		return Class{}, err
	}
	c.CreatedAt = s.now().UTC()
	return s.dir.CreateClass(ctx, c)
}

// UpdateClass replaces the fields and members of class id.
func (s *Service) UpdateClass(ctx context.Context, id int, in ClassInput) (Class, error) {
	c, err := s.classFromInput(in)
	if err != nil {
		return Class{}, err
	}
	c.ID = id
	return s.dir.UpdateClass(ctx, c)
}

func (s *Service) DeleteClass(ctx context.Context, id int) error {
	return s.dir.DeleteClass(ctx, id)
}

// ClassRoster returns the student and teacher ids of a class.
func (s *Service) ClassRoster(ctx context.Context, classID int) (Roster, error) {
	c, err := s.dir.GetClass(ctx, classID)
	if err != nil {
		return Roster{}, err
	}
	return Roster{ClassID: c.ID, StudentIDs: c.StudentIDs, TeacherIDs: c.TeacherIDs}, nil
}

// RosterStudentIDs has the shape of attendance.RosterFunc.
func (s *Service) RosterStudentIDs(ctx context.Context, classID int) ([]int, error) {
	r, err := s.ClassRoster(ctx, classID)
	if err != nil {
		return nil, err
	}
	return r.StudentIDs, nil
}

// ClassStudents returns the users with role student listed on the class.
func (s *Service) ClassStudents(ctx context.Context, classID int) ([]User, error) {
	return s.members(ctx, classID, RoleStudent)
}

// ClassTeachers returns the users with role teacher listed on the class.
func (s *Service) ClassTeachers(ctx context.Context, classID int) ([]User, error) {
	return s.members(ctx, classID, RoleTeacher)
}

func (s *Service) members(ctx context.Context, classID int, role Role) ([]User, error) {
	r, err := s.ClassRoster(ctx, classID)
	if err != nil {
		return nil, err
	}
	ids := r.StudentIDs
	if role == RoleTeacher {
		ids = r.TeacherIDs
	}
	wanted := make(map[int]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	users, err := s.dir.ListUsers(ctx, role)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(ids))
	for _, u := range users {
		if wanted[u.ID] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Service) userFromInput(in UserInput) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if err := s.check(in); err != nil {
		return User{}, err
	}
	return User{Name: in.Name, Email: in.Email, Phone: in.Phone, Role: Role(in.Role)}, nil
}

func (s *Service) classFromInput(in ClassInput) (Class, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return Class{}, err
	}
	return Class{
		Name:       in.Name,
		Grade:      strings.TrimSpace(in.Grade),
		Subject:    strings.TrimSpace(in.Subject),
		Room:       strings.TrimSpace(in.Room),
		Schedule:   strings.TrimSpace(in.Schedule),
		StudentIDs: dedupe(in.StudentIDs),
		TeacherIDs: dedupe(in.TeacherIDs),
	}, nil
}

// check runs struct validation and converts failures to apperr.ValidationError.
func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	flds := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		flds = append(flds, apperr.FieldError{
			Field: strings.ToLower(fe.Field()),
			Error: "failed on " + fe.Tag(),
		})
	}
	return apperr.NewValidationError(flds...)
}

func dedupe(ids []int) []int {
	out := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

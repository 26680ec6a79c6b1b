package school

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroll/internal/apperr"
)

func seededService() *Service {
	users := []User{
		{ID: 1, Name: "Ms. Rivera", Role: RoleTeacher},
		{ID: 2, Name: "Ana", Role: RoleStudent},
		{ID: 3, Name: "Ben", Role: RoleStudent},
		{ID: 4, Name: "Parent of Ana", Role: RoleParent},
		{ID: 5, Name: "Cleo", Role: RoleStudent},
	}
	classes := []Class{
		{ID: 10, Name: "Biology", StudentIDs: []int{2, 3, 4}, TeacherIDs: []int{1}},
	}
	return NewService(NewMemDirectory(users, classes))
}

func TestService_CreateUserValidates(t *testing.T) {
	tests := []struct {
		name    string
		in      UserInput
		wantErr bool
	}{
		{name: "valid", in: UserInput{Name: " Dana ", Email: "DANA@School.test", Role: "Student"}},
		{name: "missing name", in: UserInput{Role: "student"}, wantErr: true},
		{name: "bad email", in: UserInput{Name: "X", Email: "not-an-email", Role: "teacher"}, wantErr: true},
		{name: "unknown role", in: UserInput{Name: "X", Role: "janitor"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := seededService().CreateUser(context.Background(), tt.in)
			if tt.wantErr {
				assert.True(t, apperr.IsValidation(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 6, u.ID)
			assert.Equal(t, "Dana", u.Name)
			assert.Equal(t, "dana@school.test", u.Email)
			assert.Equal(t, RoleStudent, u.Role)
			assert.False(t, u.CreatedAt.IsZero())
		})
	}
}

func TestService_ListUsersByRole(t *testing.T) {
	svc := seededService()
	students, err := svc.ListUsers(context.Background(), "student")
	require.NoError(t, err)
	assert.Len(t, students, 3)

	_, err = svc.ListUsers(context.Background(), "wizard")
	assert.True(t, apperr.IsValidation(err))
}

func TestService_ClassMembers(t *testing.T) {
	svc := seededService()
	ctx := context.Background()

	roster, err := svc.ClassRoster(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, roster.StudentIDs)

	students, err := svc.ClassStudents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, students, 2, "non-student ids on the roster are ignored")
	assert.Equal(t, "Ana", students[0].Name)
	assert.Equal(t, "Ben", students[1].Name)

	teachers, err := svc.ClassTeachers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, teachers, 1)

	_, err = svc.ClassRoster(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.RosterStudentIDs(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_CreateClassDedupesMembers(t *testing.T) {
	c, err := seededService().CreateClass(context.Background(), ClassInput{Name: "Chemistry", StudentIDs: []int{2, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 11, c.ID)
	assert.Equal(t, []int{2, 3}, c.StudentIDs)

	_, err = seededService().CreateClass(context.Background(), ClassInput{Name: "Bad", StudentIDs: []int{0}})
	assert.True(t, apperr.IsValidation(err))
}

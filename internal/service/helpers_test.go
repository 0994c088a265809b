package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/database"
	"github.com/noah-isme/therapy-api/internal/models"
	"github.com/noah-isme/therapy-api/internal/repository"
	"github.com/noah-isme/therapy-api/internal/validation"
)

type testEnv struct {
	db        *gorm.DB
	users     repository.UserRepository
	students  repository.StudentRepository
	sessions  repository.SessionRepository
	plans     repository.IEPRepository
	progress  repository.ProgressRepository
	analyses  repository.AnalysisRepository
	logs      repository.ActivityLogRepository
	validator *validation.Validator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.Config())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	return &testEnv{
		db:        db,
		users:     repository.NewUserRepository(db),
		students:  repository.NewStudentRepository(db),
		sessions:  repository.NewSessionRepository(db),
		plans:     repository.NewIEPRepository(db),
		progress:  repository.NewProgressRepository(db),
		analyses:  repository.NewAnalysisRepository(db),
		logs:      repository.NewActivityLogRepository(db),
		validator: validation.New(),
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// principal creates a user and profile with the given role.
func (e *testEnv) principal(t *testing.T, role access.Role) access.Principal {
	t.Helper()

	user := models.User{Email: fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8]), PasswordHash: "unused"}
	profile := models.Profile{FullName: "Test " + role.String(), Role: role}
	require.NoError(t, e.users.CreateWithProfile(context.Background(), &user, &profile))

	return access.Principal{UserID: user.ID, Role: role}
}

func (e *testEnv) student(t *testing.T, parent access.Principal, therapist *access.Principal) models.Student {
	t.Helper()

	student := models.Student{
		FullName:    "Student " + uuid.NewString()[:6],
		DateOfBirth: time.Date(2016, 4, 12, 0, 0, 0, 0, time.UTC),
		ParentID:    parent.UserID,
	}
	if therapist != nil {
		id := therapist.UserID
		student.PrimaryTherapistID = &id
	}
	require.NoError(t, e.students.Create(context.Background(), &student))
	return student
}

func (e *testEnv) session(t *testing.T, studentID uuid.UUID, therapist access.Principal, status models.SessionStatus) models.TherapySession {
	t.Helper()

	session := models.TherapySession{
		StudentID:   studentID,
		TherapistID: therapist.UserID,
		SessionDate: time.Now().UTC().Add(-time.Hour),
		Status:      status,
	}
	require.NoError(t, e.sessions.Create(context.Background(), &session))
	return session
}

// enroll places the student at a fresh school administered by staff.
func (e *testEnv) enroll(t *testing.T, studentID uuid.UUID, staff access.Principal) {
	t.Helper()

	school := models.School{Name: "School " + uuid.NewString()[:6]}
	require.NoError(t, e.db.Create(&school).Error)
	require.NoError(t, e.db.Create(&models.SchoolStaff{SchoolID: school.ID, UserID: staff.UserID}).Error)
	require.NoError(t, e.db.Create(&models.StudentSchoolEnrollment{StudentID: studentID, SchoolID: school.ID}).Error)
}

type stubActivityRecorder struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (s *stubActivityRecorder) Record(_ context.Context, entry ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubActivityRecorder) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

func strPtr(value string) *string {
	return &value
}

func floatPtr(value float64) *float64 {
	return &value
}

func intPtr(value int) *int {
	return &value
}

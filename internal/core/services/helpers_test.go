package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/pkg/password"
)

// memFiles is an in-memory FileStore
type memFiles struct {
	mu         sync.Mutex
	blobs      map[string][]byte
	failStore  error
	failDelete error
}

func newMemFiles() *memFiles {
	return &memFiles{blobs: make(map[string][]byte)}
}

func (m *memFiles) Store(_ context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failStore != nil {
		return "", m.failStore
	}
	m.blobs[key] = append([]byte(nil), data...)
	return key, nil
}

func (m *memFiles) Retrieve(_ context.Context, locator string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[locator]
	if !ok {
		return nil, os.ErrNotExist
	}
	return b, nil
}

func (m *memFiles) Delete(_ context.Context, locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return m.failDelete
	}
	delete(m.blobs, locator)
	return nil
}

func (m *memFiles) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// fixture wires every service over one SQLite database
type fixture struct {
	store    *repositories.Store
	files    *memFiles
	apps     *ApplicationService
	docs     *DocumentService
	activity *ActivityService
	reports  *ReportService
	users    *UserService
	hasher   *password.Hasher
	officer  *domain.Actor
	upper    *domain.Actor
	manager  *domain.Actor
	chair    *domain.Actor
	super    *domain.Actor
	admin    *domain.Actor
	ict      *domain.Actor
}

func newTestStore(t *testing.T) *repositories.Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "permits.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return repositories.NewStore(db)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newTestStore(t)
	files := newMemFiles()
	log := zerolog.Nop()
	hasher := password.NewHasher(bcrypt.MinCost)

	f := &fixture{
		store:    store,
		files:    files,
		apps:     NewApplicationService(store, files, log),
		docs:     NewDocumentService(store, files, 1<<20, log),
		activity: NewActivityService(store, log),
		reports:  NewReportService(store, log),
		users:    NewUserService(store.Users, hasher, log),
		hasher:   hasher,
	}
	f.officer = f.seedActor(t, "officer", domain.RolePermittingOfficer)
	f.upper = f.seedActor(t, "upper", domain.RoleUpperChairperson)
	f.manager = f.seedActor(t, "manager", domain.RoleCatchmentManager)
	f.chair = f.seedActor(t, "chair", domain.RoleCatchmentChairperson)
	f.super = f.seedActor(t, "super", domain.RolePermitSupervisor)
	f.admin = f.seedActor(t, "padmin", domain.RolePermitAdministrator)
	f.ict = f.seedActor(t, "ict", domain.RoleICT)
	return f
}

func (f *fixture) seedActor(t *testing.T, username string, role domain.Role) *domain.Actor {
	t.Helper()
	hashed, err := f.hasher.Hash("password123")
	require.NoError(t, err)
	u := &models.User{Username: username, Password: hashed, Role: string(role), IsActive: true}
	require.NoError(t, f.store.Users.Create(context.Background(), u))
	return &domain.Actor{UserID: u.ID, Username: u.Username, Role: role}
}

func sampleInput() *ApplicationInput {
	return &ApplicationInput{
		ApplicantName:   "Tendai Moyo",
		PhysicalAddress: "12 Borrowdale Road, Harare",
		AccountNumber:   "ACC-0042",
		Cellular:        "0772123456",
		NumBoreholes:    2,
		LandSize:        4.5,
		GPSX:            -17.7831,
		GPSY:            31.0523,
		WaterSource:     "Borehole",
		PermitType:      "Irrigation",
	}
}

func (f *fixture) create(t *testing.T, owner *domain.Actor) *models.PermitApplication {
	t.Helper()
	app, err := f.apps.CreateApplication(context.Background(), owner, sampleInput())
	require.NoError(t, err)
	return app
}

func (f *fixture) attachRequired(t *testing.T, actor *domain.Actor, appID uint) {
	t.Helper()
	for _, dt := range domain.RequiredDocuments {
		_, err := f.docs.UploadDocument(context.Background(), actor, &UploadInput{
			ApplicationID: appID,
			DocumentType:  string(dt),
			Filename:      "scan.pdf",
			Data:          []byte("%PDF-1.4 " + string(dt)),
		})
		require.NoError(t, err)
	}
}

// advance walks a new application up to status.
func (f *fixture) advance(t *testing.T, status domain.Status) *models.PermitApplication {
	t.Helper()
	ctx := context.Background()
	app := f.create(t, f.officer)
	if status == domain.StatusUnsubmitted {
		return app
	}

	f.attachRequired(t, f.officer, app.ID)
	app, err := f.apps.SubmitApplication(ctx, f.officer, app.ID)
	require.NoError(t, err)
	if status == domain.StatusSubmitted {
		return app
	}

	app, err = f.apps.ReviewApplication(ctx, f.upper, app.ID, nil)
	require.NoError(t, err)
	if status == domain.StatusUnderReview {
		return app
	}

	app, err = f.apps.ManagerReview(ctx, f.manager, app.ID, nil)
	require.NoError(t, err)
	if status == domain.StatusManagerReviewed {
		return app
	}

	switch status {
	case domain.StatusApproved:
		app, err = f.apps.ApproveApplication(ctx, f.chair, app.ID, nil)
	case domain.StatusRejected:
		app, err = f.apps.RejectApplication(ctx, f.chair, app.ID, nil)
	}
	require.NoError(t, err)
	return app
}

func (f *fixture) logsFor(t *testing.T, appID uint) []*models.ActivityLog {
	t.Helper()
	logs, err := f.store.Activities.FindAll(context.Background(), repositories.ActivityFilter{ApplicationID: appID})
	require.NoError(t, err)
	return logs
}

func countAction(logs []*models.ActivityLog, action string) int {
	n := 0
	for _, l := range logs {
		if l.Action == action {
			n++
		}
	}
	return n
}

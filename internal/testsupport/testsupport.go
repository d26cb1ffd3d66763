package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trafficlens/internal"
	"trafficlens/internal/analytics"
	"trafficlens/internal/config"
	"trafficlens/internal/preferences"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with trafficlens's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

func allModels() []any {
	models := analytics.Models()
	return append(models, &preferences.UserPreference{})
}

// SetupTestDB creates a test database with all trafficlens models migrated.
// Uses a named in-memory database with cache=shared to allow multiple
// connections to share the same database within a test. Caches the database
// by test name so multiple calls within the same test return the same
// database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	if len(tableNames) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// VisitorSpec carries the optional attributes of a seeded visitor.
type VisitorSpec struct {
	Country       string
	Region        string
	City          string
	Browser       string
	OS            string
	DeviceType    string
	Referrer      string
	SourceChannel string
	UserID        *int64
}

// CreateVisitor inserts a visitor created at the given datetime string.
func CreateVisitor(t *testing.T, db *gorm.DB, hash, createdAt string, spec VisitorSpec) analytics.Visitor {
	t.Helper()
	visitor := analytics.Visitor{
		Hash:          hash,
		CreatedAt:     createdAt,
		Country:       spec.Country,
		Region:        spec.Region,
		City:          spec.City,
		Browser:       spec.Browser,
		OS:            spec.OS,
		DeviceType:    spec.DeviceType,
		Referrer:      spec.Referrer,
		SourceChannel: spec.SourceChannel,
		UserID:        spec.UserID,
	}
	require.NoError(t, db.Create(&visitor).Error)
	return visitor
}

// CreateSession inserts a session for a visitor. Duration is seconds between
// start and end; a zero-view session is marked as a bounce by the caller.
func CreateSession(t *testing.T, db *gorm.DB, visitorID uint, startedAt, endedAt string, duration, totalViews, isBounce int) analytics.Session {
	t.Helper()
	session := analytics.Session{
		VisitorID:  visitorID,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
		Duration:   duration,
		TotalViews: totalViews,
		IsBounce:   isBounce,
	}
	require.NoError(t, db.Create(&session).Error)
	return session
}

// CreateView inserts a page view belonging to a session.
func CreateView(t *testing.T, db *gorm.DB, sessionID, visitorID, resourceURIID uint, viewedAt string) analytics.View {
	t.Helper()
	view := analytics.View{
		SessionID:     sessionID,
		VisitorID:     visitorID,
		ResourceURIID: resourceURIID,
		ViewedAt:      viewedAt,
	}
	require.NoError(t, db.Create(&view).Error)
	return view
}

// CreateEvent inserts a custom event.
func CreateEvent(t *testing.T, db *gorm.DB, visitorID, sessionID uint, name, date string) analytics.Event {
	t.Helper()
	event := analytics.Event{
		VisitorID: visitorID,
		SessionID: sessionID,
		Name:      name,
		Date:      date,
	}
	require.NoError(t, db.Create(&event).Error)
	return event
}

// CreateResource inserts a resource and one URI pointing at it, returning
// both.
func CreateResource(t *testing.T, db *gorm.DB, uri, title, resourceType string, authorID uint) (analytics.Resource, analytics.ResourceURI) {
	t.Helper()
	resource := analytics.Resource{
		Type:     resourceType,
		Title:    title,
		AuthorID: authorID,
	}
	require.NoError(t, db.Create(&resource).Error)
	resourceURI := analytics.ResourceURI{
		URI:        uri,
		ResourceID: resource.ID,
	}
	require.NoError(t, db.Create(&resourceURI).Error)
	return resource, resourceURI
}

// CreateSummaryTotal inserts one site-wide daily summary row.
func CreateSummaryTotal(t *testing.T, db *gorm.DB, date string, visitors, views, sessions, bounces, totalDuration int) analytics.SummaryTotal {
	t.Helper()
	row := analytics.SummaryTotal{
		Date:          date,
		Visitors:      visitors,
		Views:         views,
		Sessions:      sessions,
		Bounces:       bounces,
		TotalDuration: totalDuration,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

// CreateSummary inserts one per-resource daily summary row.
func CreateSummary(t *testing.T, db *gorm.DB, date string, resourceID uint, visitors, views, sessions, bounces, totalDuration int) analytics.Summary {
	t.Helper()
	row := analytics.Summary{
		Date:          date,
		ResourceID:    resourceID,
		Visitors:      visitors,
		Views:         views,
		Sessions:      sessions,
		Bounces:       bounces,
		TotalDuration: totalDuration,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

// CreateExclusion inserts one daily exclusion bucket.
func CreateExclusion(t *testing.T, db *gorm.DB, date, reason string, count int) analytics.Exclusion {
	t.Helper()
	row := analytics.Exclusion{Date: date, Reason: reason, Count: count}
	require.NoError(t, db.Create(&row).Error)
	return row
}

// SeedVisit creates the full visitor→session→view chain for one page view.
// It is the smallest unit most executor tests need.
func SeedVisit(t *testing.T, db *gorm.DB, hash, at string, resourceURIID uint, spec VisitorSpec) (analytics.Visitor, analytics.Session, analytics.View) {
	t.Helper()
	visitor := CreateVisitor(t, db, hash, at, spec)
	session := CreateSession(t, db, visitor.ID, at, at, 0, 1, 0)
	view := CreateView(t, db, session.ID, visitor.ID, resourceURIID, at)
	return visitor, session, view
}

// CreateMinimalTestApp creates a test Fiber app with all routes mounted
// against the given database.
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}

package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/innkeeper/internal/config"
	"github.com/simp-lee/innkeeper/internal/middleware"
	"github.com/simp-lee/innkeeper/internal/repository"
)

type fakeHTTPServer struct {
	listenErr      error
	listenStarted  chan struct{}
	shutdownCalled bool
	stopCh         chan struct{}
	mu             sync.Mutex
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenStarted != nil {
		close(f.listenStarted)
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	if f.stopCh != nil {
		<-f.stopCh
		return http.ErrServerClosed
	}
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.mu.Lock()
	f.shutdownCalled = true
	f.mu.Unlock()
	if f.stopCh != nil {
		close(f.stopCh)
	}
	return nil
}

func (f *fakeHTTPServer) wasShutdownCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdownCalled
}

func testConfig(t *testing.T, autoMigrate bool) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Mode: gin.TestMode,
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			SQLite:      config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "innkeeper.db")},
			AutoMigrate: autoMigrate,
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "text",
		},
		Query: config.QueryConfig{MaxLimit: 20, MaxDepth: 2},
	}
}

func cleanupTestApp(t *testing.T, a *App) {
	t.Helper()
	if a == nil {
		return
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

func TestValidateGinMode(t *testing.T) {
	tests := []struct {
		mode    string
		wantErr bool
	}{
		{gin.DebugMode, false},
		{gin.ReleaseMode, false},
		{gin.TestMode, false},
		{"staging", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			if err := validateGinMode(tt.mode); (err != nil) != tt.wantErr {
				t.Fatalf("validateGinMode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("New(nil) error = nil, want error")
	}
}

func TestNew_ReturnsError_WhenDatabaseSetupFails(t *testing.T) {
	cfg := testConfig(t, false)
	cfg.Database.Driver = "unsupported"

	app, err := New(cfg)
	if err == nil {
		t.Fatalf("New() error = nil, want error")
	}
	if app != nil {
		t.Fatalf("New() app = %#v, want nil", app)
	}
	if !strings.Contains(err.Error(), "setup database") {
		t.Fatalf("New() error = %q, want contains %q", err.Error(), "setup database")
	}
}

func TestNew_ServesEveryCollection(t *testing.T) {
	app, err := New(testConfig(t, true))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cleanupTestApp(t, app)

	for _, name := range app.registry.Catalog.Names() {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			app.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/"+name, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("GET /api/v1/%s = %d, body %s", name, w.Code, w.Body.String())
			}
			if w.Header().Get(middleware.HeaderRequestID) == "" {
				t.Error("expected a request id header")
			}
		})
	}
}

func TestNew_AppliesQueryLimits(t *testing.T) {
	app, err := New(testConfig(t, true))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cleanupTestApp(t, app)

	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/hotels?limit=500", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Data struct {
			Metadata struct {
				Limit int `json:"limit"`
			} `json:"metadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Data.Metadata.Limit != 20 {
		t.Fatalf("limit = %d, want capped at 20", body.Data.Metadata.Limit)
	}
}

func TestNew_WithoutAutoMigrate_LeavesSchemaAlone(t *testing.T) {
	app, err := New(testConfig(t, false))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cleanupTestApp(t, app)

	if app.db.Migrator().HasTable("hotels") {
		t.Fatal("expected hotels table to be absent without auto_migrate")
	}
}

func TestMigrate_CreatesEveryTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{DisableForeignKeyConstraintWhenMigrating: true})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, m := range repository.Models() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T missing", m)
		}
	}
	for _, join := range []string{"hotel_amenities", "hotel_staff"} {
		if !db.Migrator().HasTable(join) {
			t.Errorf("join table %s missing", join)
		}
	}
}

func TestRunMigrations(t *testing.T) {
	cfg := testConfig(t, false)
	if err := RunMigrations(cfg); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.Database.SQLite.Path), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	if !db.Migrator().HasTable("bookings") {
		t.Fatal("expected bookings table after RunMigrations")
	}

	if err := RunMigrations(nil); err == nil {
		t.Fatal("RunMigrations(nil) error = nil, want error")
	}
}

func TestRun_ReturnsError_WhenListenFails(t *testing.T) {
	originalNewHTTPServer := newHTTPServer
	originalNotifyContext := notifyContext
	defer func() {
		newHTTPServer = originalNewHTTPServer
		notifyContext = originalNotifyContext
	}()

	listenErr := errors.New("listen failed")
	server := &fakeHTTPServer{listenErr: listenErr}
	newHTTPServer = func(string, http.Handler, time.Duration) httpServer {
		return server
	}
	notifyContext = func(context.Context, ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(context.Background())
	}

	a := &App{
		engine: gin.New(),
		logger: logger.Default(),
		cfg:    &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080}},
	}

	err := a.Run()
	if err == nil {
		t.Fatalf("Run() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "server error") {
		t.Fatalf("Run() error = %q, want contains %q", err.Error(), "server error")
	}
	if !errors.Is(err, listenErr) {
		t.Fatalf("Run() error = %v, want wraps %v", err, listenErr)
	}
	if server.wasShutdownCalled() {
		t.Fatal("Shutdown() should not be called after a listen failure")
	}
}

func TestRun_UsesConfiguredTimeout(t *testing.T) {
	originalNewHTTPServer := newHTTPServer
	originalNotifyContext := notifyContext
	defer func() {
		newHTTPServer = originalNewHTTPServer
		notifyContext = originalNotifyContext
	}()

	var gotAddr string
	var gotTimeout time.Duration
	newHTTPServer = func(addr string, _ http.Handler, timeout time.Duration) httpServer {
		gotAddr, gotTimeout = addr, timeout
		return &fakeHTTPServer{listenErr: errors.New("stop")}
	}
	notifyContext = func(context.Context, ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(context.Background())
	}

	a := &App{
		engine: gin.New(),
		cfg:    &config.Config{Server: config.ServerConfig{Host: "0.0.0.0", Port: 9000, Timeout: "12s"}},
	}
	_ = a.Run()

	if gotAddr != "0.0.0.0:9000" {
		t.Errorf("addr = %q, want 0.0.0.0:9000", gotAddr)
	}
	if gotTimeout != 12*time.Second {
		t.Errorf("timeout = %v, want 12s", gotTimeout)
	}
}

func TestRun_ShutdownSignal_ClosesDatabase(t *testing.T) {
	originalNewHTTPServer := newHTTPServer
	originalNotifyContext := notifyContext
	defer func() {
		newHTTPServer = originalNewHTTPServer
		notifyContext = originalNotifyContext
	}()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB() error = %v", err)
	}

	server := &fakeHTTPServer{listenStarted: make(chan struct{}), stopCh: make(chan struct{})}
	newHTTPServer = func(string, http.Handler, time.Duration) httpServer {
		return server
	}

	ctx, cancel := context.WithCancel(context.Background())
	notifyContext = func(context.Context, ...os.Signal) (context.Context, context.CancelFunc) {
		return ctx, cancel
	}

	a := &App{
		engine: gin.New(),
		db:     db,
		logger: logger.Default(),
		cfg:    &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, ShutdownTimeout: "1s"}},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run()
	}()

	select {
	case <-server.listenStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start listening in time")
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return in time after shutdown signal")
	}

	if !server.wasShutdownCalled() {
		t.Fatal("expected server Shutdown() to be called")
	}

	if pingErr := sqlDB.Ping(); pingErr == nil {
		t.Fatal("expected database connection to be closed, but Ping() succeeded")
	}
}

func TestRun_NilGuards(t *testing.T) {
	var nilApp *App
	if err := nilApp.Run(); err == nil {
		t.Error("nil app: Run() error = nil")
	}
	if err := (&App{}).Run(); err == nil {
		t.Error("missing config: Run() error = nil")
	}
	if err := (&App{cfg: &config.Config{}}).Run(); err == nil {
		t.Error("missing engine: Run() error = nil")
	}
}

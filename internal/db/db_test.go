package db_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/tahakubilay/Full-CRM-Claude/internal/config"
	"github.com/tahakubilay/Full-CRM-Claude/internal/db"
	"github.com/tahakubilay/Full-CRM-Claude/internal/db/dbtest"
	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
)

func TestSQLiteDSN(t *testing.T) {
	if got := db.SQLiteDSN("crm.db"); !strings.HasPrefix(got, "crm.db?_pragma=journal_mode(WAL)") {
		t.Errorf("unexpected dsn %q", got)
	}
	if got := db.SQLiteDSN("file:crm.db?cache=shared"); !strings.HasPrefix(got, "file:crm.db?cache=shared&_pragma=") {
		t.Errorf("unexpected dsn %q", got)
	}
}

func TestNew_SQLite(t *testing.T) {
	gdb, err := db.New(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "crm.db"),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	defer sqlDB.Close()

	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("expected a single connection, got %d", got)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	var mode string
	gdb.Raw("PRAGMA journal_mode").Scan(&mode)
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("expected WAL journal mode, got %q", mode)
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	if _, err := db.New(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestSeed_Idempotent(t *testing.T) {
	gdb := dbtest.Open(t)
	actor := uuid.New()

	if err := db.Seed(gdb, actor); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.Seed(gdb, actor); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	counts := map[string]int64{}
	for name, model := range map[string]any{
		"companies": &models.Company{},
		"brands":    &models.Brand{},
		"branches":  &models.Branch{},
		"templates": &models.Template{},
	} {
		var n int64
		if err := gdb.Model(model).Count(&n).Error; err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		counts[name] = n
	}
	want := map[string]int64{"companies": 2, "brands": 4, "branches": 12, "templates": 1}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("%s = %d, want %d", k, counts[k], v)
		}
	}

	var tpl models.Template
	if err := gdb.Where("name = ?", db.SampleTemplateName).First(&tpl).Error; err != nil {
		t.Fatalf("sample template: %v", err)
	}
	if !strings.Contains(tpl.Body, "{{company}}") || tpl.Placeholders["amount"] == nil {
		t.Errorf("unexpected sample template %+v", tpl)
	}
}

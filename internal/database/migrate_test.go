package database

import (
	"strings"
	"testing"
)

// 埋め込みマイグレーションにup/downの対が揃っていることを検証
func TestMigrations_Embedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migration files found")
	}

	ups := 0
	downs := 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		default:
			t.Errorf("unexpected migration file: %s", e.Name())
		}
	}

	if ups != downs {
		t.Errorf("up/down migration count mismatch: %d up, %d down", ups, downs)
	}
}

// 初期マイグレーションが3テーブルを作成することを検証
func TestMigrations_InitCreatesTables(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/0001_init.up.sql")
	if err != nil {
		t.Fatalf("failed to read 0001_init.up.sql: %v", err)
	}

	sql := string(data)
	for _, table := range []string{"study_sessions", "progress_records", "streak_states"} {
		if !strings.Contains(sql, "CREATE TABLE "+table) {
			t.Errorf("0001_init.up.sql does not create table %s", table)
		}
	}

	// オープンセッションの一意性を保証する部分インデックス
	if !strings.Contains(sql, "WHERE ended_at IS NULL") {
		t.Error("missing partial unique index on open sessions")
	}
}

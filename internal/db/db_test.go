package db

import (
	"path/filepath"
	"testing"
)

func TestMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "najdeno.sqlite3")

	for i := 0; i < 2; i++ {
		database, err := Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if err := Migrate(database); err != nil {
			t.Fatalf("Migrate (run %d): %v", i+1, err)
		}
		database.Close()
	}
}

func TestOneApprovedClaimIndex(t *testing.T) {
	database := NewTestDB(t)

	mustExec := func(q string, args ...any) {
		t.Helper()
		if _, err := database.Exec(q, args...); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}

	mustExec(`INSERT INTO items (id, name, finder) VALUES ('i1', 'Wallet', '0x01')`)
	mustExec(`INSERT INTO claims (id, item_id, seq, applicant, secret_detail, status, created_at, updated_at)
	          VALUES ('c1', 'i1', 1, '0x02', 's', 'approved', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)

	_, err := database.Exec(`INSERT INTO claims (id, item_id, seq, applicant, secret_detail, status, created_at, updated_at)
	                         VALUES ('c2', 'i1', 2, '0x03', 's', 'approved', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	if err == nil {
		t.Error("expected second approved claim to violate the unique index")
	}
}

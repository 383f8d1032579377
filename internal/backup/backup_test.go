package backup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cifraxlab/cifrax/internal/accounts"
	"github.com/cifraxlab/cifrax/internal/records"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&accounts.Account{}, &records.Group{}, &records.Combination{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func seedRows(t *testing.T, db *gorm.DB) {
	t.Helper()
	account := accounts.Account{AccountID: "acct-1", Email: "user@example.com", PasswordHash: "x", Role: accounts.RoleAdmin, CreatedAtSeconds: 100}
	group := records.Group{GroupID: "g1", OwnerID: "acct-1", Name: "Vault", Color: "bg-teal-500", CreatedAtSeconds: 110}
	combination := records.Combination{CombinationID: "c1", OwnerID: "acct-1", Name: "Safe1", FirstNumber: 5, SecondNumber: 72, ThirdNumber: 18, GroupID: "g1", CreatedAtSeconds: 120}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("seed account failed: %v", err)
	}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("seed group failed: %v", err)
	}
	if err := db.Create(&combination).Error; err != nil {
		t.Fatalf("seed combination failed: %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	source := openTestDatabase(t)
	seedRows(t, source)

	doc, err := newTestService(t, source).Export(context.Background())
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if doc.Version != DocumentVersion {
		t.Fatalf("unexpected document version: %d", doc.Version)
	}
	if len(doc.Accounts) != 1 || len(doc.Groups) != 1 || len(doc.Combinations) != 1 {
		t.Fatalf("unexpected document contents: %+v", doc)
	}

	destination := openTestDatabase(t)
	if err := newTestService(t, destination).Import(context.Background(), doc, ModeReplace); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	var combination records.Combination
	if err := destination.Where("combination_id = ?", "c1").Take(&combination).Error; err != nil {
		t.Fatalf("imported combination missing: %v", err)
	}
	if combination.Name != "Safe1" || combination.Numbers() != (records.NumberTriple{5, 72, 18}) {
		t.Fatalf("imported combination altered: %+v", combination)
	}
}

func TestImportReplaceWipesExistingRows(t *testing.T) {
	db := openTestDatabase(t)
	seedRows(t, db)
	service := newTestService(t, db)

	doc := Document{
		Version: DocumentVersion,
		Combinations: []records.Combination{
			{CombinationID: "c9", OwnerID: "acct-9", Name: "Fresh", FirstNumber: 1, SecondNumber: 2, ThirdNumber: 3, CreatedAtSeconds: 500},
		},
	}
	if err := service.Import(context.Background(), doc, ModeReplace); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	var count int64
	if err := db.Model(&records.Combination{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("replace must wipe previous rows, found %d", count)
	}
	var remaining int64
	if err := db.Model(&accounts.Account{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("replace must wipe accounts too, found %d", remaining)
	}
}

func TestImportMergeUpsertsByKey(t *testing.T) {
	db := openTestDatabase(t)
	seedRows(t, db)
	service := newTestService(t, db)

	doc := Document{
		Version: DocumentVersion,
		Combinations: []records.Combination{
			{CombinationID: "c1", OwnerID: "acct-1", Name: "Renamed", FirstNumber: 9, SecondNumber: 9, ThirdNumber: 9, CreatedAtSeconds: 120},
			{CombinationID: "c2", OwnerID: "acct-1", Name: "Added", FirstNumber: 1, SecondNumber: 2, ThirdNumber: 3, CreatedAtSeconds: 130},
		},
	}
	if err := service.Import(context.Background(), doc, ModeMerge); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	var count int64
	if err := db.Model(&records.Combination{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("merge must keep and add rows, found %d", count)
	}
	var updated records.Combination
	if err := db.Where("combination_id = ?", "c1").Take(&updated).Error; err != nil {
		t.Fatalf("merged combination missing: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("merge must overwrite matching keys, got %q", updated.Name)
	}
	var account int64
	if err := db.Model(&accounts.Account{}).Count(&account).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if account != 1 {
		t.Fatalf("merge must keep unrelated rows, found %d accounts", account)
	}
}

func TestImportRejectsInvalidRows(t *testing.T) {
	service := newTestService(t, openTestDatabase(t))

	tests := []struct {
		name string
		doc  Document
	}{
		{
			name: "combination-number-out-of-range",
			doc: Document{Version: DocumentVersion, Combinations: []records.Combination{
				{CombinationID: "c1", OwnerID: "a", Name: "Bad", FirstNumber: 120},
			}},
		},
		{
			name: "group-color-off-palette",
			doc: Document{Version: DocumentVersion, Groups: []records.Group{
				{GroupID: "g1", OwnerID: "a", Name: "Bad", Color: "taupe"},
			}},
		},
		{
			name: "account-missing-email",
			doc: Document{Version: DocumentVersion, Accounts: []accounts.Account{
				{AccountID: "a1"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.Import(context.Background(), tt.doc, ModeReplace)
			if !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestImportRejectsNewerVersion(t *testing.T) {
	service := newTestService(t, openTestDatabase(t))

	err := service.Import(context.Background(), Document{Version: DocumentVersion + 1}, ModeReplace)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestResetEmptiesEveryTable(t *testing.T) {
	db := openTestDatabase(t)
	seedRows(t, db)

	if err := newTestService(t, db).Reset(context.Background()); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	for _, model := range []interface{}{&accounts.Account{}, &records.Group{}, &records.Combination{}} {
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 0 {
			t.Fatalf("reset must empty every table, %T still has %d rows", model, count)
		}
	}
}

func TestParseMode(t *testing.T) {
	if _, err := ParseMode("sideways"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	for raw, want := range map[string]Mode{"replace": ModeReplace, "merge": ModeMerge} {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v", raw, got, err)
		}
	}
}

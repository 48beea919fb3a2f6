package nft

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/tokmz/datafeed/pkg/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := OpenDB(&DBConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	store := NewStore(db)
	if err := store.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return store
}

func seed(t *testing.T, store *Store, rows ...Collection) {
	t.Helper()
	if err := store.CreateInBatches(context.Background(), rows, 100); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
}

// TestStoreFind 测试集合查询
func TestStoreFind(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	seed(t, store, Collection{
		ChainID:     "1",
		Address:     "0xabc",
		Name:        "Azuki",
		Marketcap:   1000,
		Floorprice:  5.6,
		Assets:      10000,
		ImageURL:    "https://example.com/azuki.png",
		Description: "avatars",
		Blockchain:  "ethereum",
	})

	t.Run("DefaultProjection", func(t *testing.T) {
		doc, err := store.FindByChainIDAndAddress(ctx, "1", "0xabc", DefaultFields)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc["name"] != "Azuki" || doc["description"] != "avatars" {
			t.Errorf("unexpected document %v", doc)
		}
		if _, present := doc["marketcap"]; present {
			t.Error("projection must not include unrequested fields")
		}
		if _, present := doc["id"]; present {
			t.Error("projection must not leak primary key")
		}
	})

	t.Run("MetricProjection", func(t *testing.T) {
		doc, err := store.FindByChainIDAndAddress(ctx, "1", "0xabc", []string{"floorprice"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc["floorprice"] != 5.6 {
			t.Errorf("unexpected value %v", doc["floorprice"])
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := store.FindByChainIDAndAddress(ctx, "1", "0xmissing", DefaultFields); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.FindByChainIDAndAddress(ctx, "2", "0xabc", DefaultFields); err != ErrNotFound {
			t.Errorf("chain mismatch must not match, got %v", err)
		}
	})

	t.Run("UnknownFieldRejected", func(t *testing.T) {
		if _, err := store.FindByChainIDAndAddress(ctx, "1", "0xabc", []string{"password"}); err == nil {
			t.Error("expected error for field outside whitelist")
		}
	})

	t.Run("Keys", func(t *testing.T) {
		keys, err := store.Keys(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(keys) != 1 || keys[0] != [2]string{"1", "0xabc"} {
			t.Errorf("unexpected keys %v", keys)
		}
	})
}

// TestMigrate 测试原始数据导入
func TestMigrate(t *testing.T) {
	ctx := context.Background()

	writeRaw := func(t *testing.T, records []map[string]any) string {
		t.Helper()
		data, err := json.Marshal(records)
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(t.TempDir(), "rawdata.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	records := []map[string]any{
		{"chain_id": 1, "address": "0xabc", "name": "Azuki", "marketcap": 1000.0},
		{"chain_id": "solana", "address": "DGNAq", "name": "DeGods", "floorprice": 310.2},
	}

	t.Run("ImportsRecords", func(t *testing.T) {
		store := openTestStore(t)
		path := writeRaw(t, records)

		err := Migrate(ctx, store, MigrateOptions{Auto: true, Source: path, BatchSize: 10}, logger.Nop())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		count, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 rows, got %d", count)
		}

		// 数字 chain_id 归一化为字符串
		doc, err := store.FindByChainIDAndAddress(ctx, "1", "0xabc", []string{"name"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc["name"] != "Azuki" {
			t.Errorf("unexpected doc %v", doc)
		}
	})

	t.Run("SkipsWhenUpToDate", func(t *testing.T) {
		store := openTestStore(t)
		path := writeRaw(t, records)

		if err := Migrate(ctx, store, MigrateOptions{Auto: true, Source: path, BatchSize: 10}, logger.Nop()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 第二次导入应跳过，不产生唯一键冲突
		if err := Migrate(ctx, store, MigrateOptions{Auto: true, Source: path, BatchSize: 10}, logger.Nop()); err != nil {
			t.Fatalf("repeat migration must be a no-op, got %v", err)
		}

		count, _ := store.Count(ctx)
		if count != 2 {
			t.Errorf("expected 2 rows after repeat migration, got %d", count)
		}
	})

	t.Run("DisabledSkips", func(t *testing.T) {
		store := openTestStore(t)
		if err := Migrate(ctx, store, MigrateOptions{Auto: false, Source: "does-not-exist.json"}, logger.Nop()); err != nil {
			t.Errorf("disabled migration must not fail, got %v", err)
		}
	})

	t.Run("MissingSourceFails", func(t *testing.T) {
		store := openTestStore(t)
		if err := Migrate(ctx, store, MigrateOptions{Auto: true, Source: "does-not-exist.json"}, logger.Nop()); err == nil {
			t.Error("expected error for missing source file")
		}
	})
}

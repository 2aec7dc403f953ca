package proxy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/router-for-me/proxyconsole/internal/models"
	"gorm.io/gorm"
)

func setupProxyStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:proxystore_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func TestGormStoreEmptyTableReadsZeroProxy(t *testing.T) {
	store := NewGormStore(setupProxyStoreDB(t))

	p, err := store.GetProxy(context.Background())
	if err != nil {
		t.Fatalf("get proxy: %v", err)
	}
	if p.IsConfigured() || p.Enabled || p.Port != 0 {
		t.Fatalf("expected zero proxy, got %+v", p)
	}
}

func TestGormStoreUpdateReplacesWholeConfiguration(t *testing.T) {
	db := setupProxyStoreDB(t)
	store := NewGormStore(db)
	ctx := context.Background()

	first := Proxy{Host: "proxy.example.com", Port: 3128, Username: strPtr("ops"), Password: strPtr("pw"), Enabled: true}
	if err := store.UpdateProxy(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}
	got, err := store.GetProxy(ctx)
	if err != nil {
		t.Fatalf("get proxy: %v", err)
	}
	if got.Host != first.Host || got.Port != first.Port || got.Username == nil || *got.Username != "ops" || got.Password == nil || *got.Password != "pw" || !got.Enabled {
		t.Fatalf("unexpected proxy after first update: %+v", got)
	}

	second := Proxy{Host: "10.0.0.2", Port: 8080, Enabled: false}
	if err := store.UpdateProxy(ctx, second); err != nil {
		t.Fatalf("second update: %v", err)
	}
	got, err = store.GetProxy(ctx)
	if err != nil {
		t.Fatalf("get proxy: %v", err)
	}
	if got.Host != "10.0.0.2" || got.Port != 8080 || got.Enabled {
		t.Fatalf("unexpected proxy after second update: %+v", got)
	}
	if got.Username != nil || got.Password != nil {
		t.Fatalf("expected credentials to be cleared, got %v/%v", got.Username, got.Password)
	}

	var count int64
	if errCount := db.Model(&models.Setting{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count settings: %v", errCount)
	}
	if count != int64(len(settingKeys)) {
		t.Fatalf("expected %d setting rows, got %d", len(settingKeys), count)
	}
}

func TestGormStoreRejectsCorruptSetting(t *testing.T) {
	db := setupProxyStoreDB(t)
	row := models.Setting{Key: PortKey, Value: []byte(`"not a port"`)}
	if errCreate := db.Create(&row).Error; errCreate != nil {
		t.Fatalf("create setting: %v", errCreate)
	}

	if _, err := NewGormStore(db).GetProxy(context.Background()); err == nil {
		t.Fatalf("expected decode error for corrupt port setting")
	}
}

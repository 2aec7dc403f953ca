package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/router-for-me/proxyconsole/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Settings keys holding the proxy configuration.
const (
	HostKey     = "PROXY_HOST"
	PortKey     = "PROXY_PORT"
	UsernameKey = "PROXY_USERNAME"
	PasswordKey = "PROXY_PASSWORD"
	EnabledKey  = "PROXY_ENABLED"
)

var settingKeys = []string{HostKey, PortKey, UsernameKey, PasswordKey, EnabledKey}

// GormStore keeps the proxy configuration in the settings table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a settings-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GetProxy loads the proxy settings; missing keys read as zero values.
func (s *GormStore) GetProxy(ctx context.Context) (Proxy, error) {
	if s == nil || s.db == nil {
		return Proxy{}, errors.New("proxy: nil store")
	}

	var rows []models.Setting
	if errFind := s.db.WithContext(ctx).
		Select("key", "value").
		Where("key IN ?", settingKeys).
		Find(&rows).Error; errFind != nil {
		return Proxy{}, fmt.Errorf("proxy: load settings: %w", errFind)
	}

	values := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return proxyFromSettings(values)
}

// UpdateProxy writes every proxy key in one transaction.
func (s *GormStore) UpdateProxy(ctx context.Context, p Proxy) error {
	if s == nil || s.db == nil {
		return errors.New("proxy: nil store")
	}

	rows, errRows := proxyToSettings(p, time.Now().UTC())
	if errRows != nil {
		return errRows
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errUpsert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
		if errUpsert != nil {
			return fmt.Errorf("proxy: save settings: %w", errUpsert)
		}
		return nil
	})
}

func proxyFromSettings(values map[string]json.RawMessage) (Proxy, error) {
	var p Proxy
	targets := map[string]any{
		HostKey:     &p.Host,
		PortKey:     &p.Port,
		UsernameKey: &p.Username,
		PasswordKey: &p.Password,
		EnabledKey:  &p.Enabled,
	}
	for _, key := range settingKeys {
		raw, ok := values[key]
		if !ok || len(raw) == 0 {
			continue
		}
		if errUnmarshal := json.Unmarshal(raw, targets[key]); errUnmarshal != nil {
			return Proxy{}, fmt.Errorf("proxy: decode setting %s: %w", key, errUnmarshal)
		}
	}
	return p, nil
}

func proxyToSettings(p Proxy, now time.Time) ([]models.Setting, error) {
	values := []struct {
		key   string
		value any
	}{
		{HostKey, p.Host},
		{PortKey, p.Port},
		{UsernameKey, p.Username},
		{PasswordKey, p.Password},
		{EnabledKey, p.Enabled},
	}

	rows := make([]models.Setting, 0, len(values))
	for _, v := range values {
		raw, errMarshal := json.Marshal(v.value)
		if errMarshal != nil {
			return nil, fmt.Errorf("proxy: encode setting %s: %w", v.key, errMarshal)
		}
		rows = append(rows, models.Setting{Key: v.key, Value: raw, UpdatedAt: now})
	}
	return rows, nil
}

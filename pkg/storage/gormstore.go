package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storacha/silo/pkg/database/gormdb"
)

// recordRow is the row layout of every SQL binding table.
type recordRow struct {
	Key       string         `gorm:"column:record_key;primaryKey;size:512"`
	ETag      string         `gorm:"column:etag;size:64;not null"`
	Payload   datatypes.JSON `gorm:"column:payload;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

func (r recordRow) toRecord() Record {
	return Record{
		Key:       r.Key,
		ETag:      r.ETag,
		Payload:   json.RawMessage(r.Payload),
		UpdatedAt: r.UpdatedAt,
	}
}

type gormStore struct {
	db    *gorm.DB
	table string
}

var _ RecordStore = (*gormStore)(nil)

// NewGormStore creates table when missing and returns a store over it. The
// store owns db and closes it on Close.
func NewGormStore(ctx context.Context, db *gorm.DB, table string) (RecordStore, error) {
	if err := db.WithContext(ctx).Table(table).AutoMigrate(&recordRow{}); err != nil {
		return nil, fmt.Errorf("migrating table %s: %w", table, err)
	}
	return &gormStore{db: db, table: table}, nil
}

func (s *gormStore) tx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

func (s *gormStore) Get(ctx context.Context, key string) (Record, error) {
	var row recordRow
	err := s.tx(ctx).Where("record_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("reading %s/%s: %w", s.table, key, err)
	}
	return row.toRecord(), nil
}

func (s *gormStore) Put(ctx context.Context, key string, payload json.RawMessage, etag string) (string, error) {
	next := uuid.NewString()
	now := time.Now().UTC()

	if etag == "" {
		err := s.tx(ctx).Create(&recordRow{Key: key, ETag: next, Payload: datatypes.JSON(payload), UpdatedAt: now}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return "", fmt.Errorf("inserting %s/%s: %w", s.table, key, ErrETagMismatch)
		}
		if err != nil {
			return "", fmt.Errorf("inserting %s/%s: %w", s.table, key, err)
		}
		return next, nil
	}

	res := s.tx(ctx).
		Where("record_key = ? AND etag = ?", key, etag).
		Updates(map[string]any{"etag": next, "payload": datatypes.JSON(payload), "updated_at": now})
	if res.Error != nil {
		return "", fmt.Errorf("updating %s/%s: %w", s.table, key, res.Error)
	}
	if res.RowsAffected == 0 {
		return "", fmt.Errorf("updating %s/%s: %w", s.table, key, ErrETagMismatch)
	}
	return next, nil
}

func (s *gormStore) Upsert(ctx context.Context, key string, payload json.RawMessage) (string, error) {
	next := uuid.NewString()
	row := recordRow{Key: key, ETag: next, Payload: datatypes.JSON(payload), UpdatedAt: time.Now().UTC()}
	err := s.tx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"etag", "payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return "", fmt.Errorf("upserting %s/%s: %w", s.table, key, err)
	}
	return next, nil
}

func (s *gormStore) Delete(ctx context.Context, key string, etag string) error {
	q := s.tx(ctx).Where("record_key = ?", key)
	if etag != "" {
		q = q.Where("etag = ?", etag)
	}
	res := q.Delete(&recordRow{})
	if res.Error != nil {
		return fmt.Errorf("deleting %s/%s: %w", s.table, key, res.Error)
	}
	if etag != "" && res.RowsAffected == 0 {
		return fmt.Errorf("deleting %s/%s: %w", s.table, key, ErrETagMismatch)
	}
	return nil
}

func (s *gormStore) List(ctx context.Context, prefix string) ([]Record, error) {
	var rows []recordRow
	q := s.tx(ctx)
	if prefix != "" {
		q = q.Where(`record_key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	}
	if err := q.Order("record_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing %s/%s*: %w", s.table, prefix, err)
	}
	// sqlite LIKE ignores case
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if strings.HasPrefix(r.Key, prefix) {
			out = append(out, r.toRecord())
		}
	}
	return out, nil
}

func (s *gormStore) Close() error {
	return gormdb.Close(s.db)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// isUniqueViolation catches drivers that do not translate constraint errors.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

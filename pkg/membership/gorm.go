package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/storacha/silo/pkg/database/gormdb"
)

type memberRow struct {
	ID             string    `gorm:"column:id;primaryKey;size:300"`
	ClusterID      string    `gorm:"column:cluster_id;index;size:200;not null"`
	ServiceID      string    `gorm:"column:service_id;size:200;not null"`
	SiloName       string    `gorm:"column:silo_name;size:300;not null"`
	SiloAddress    string    `gorm:"column:silo_address;index;size:280;not null"`
	GatewayAddress string    `gorm:"column:gateway_address;size:280;not null"`
	Generation     int64     `gorm:"column:generation;not null"`
	Status         string    `gorm:"column:status;size:32;not null"`
	StartTime      time.Time `gorm:"column:start_time"`
	IAmAliveTime   time.Time `gorm:"column:i_am_alive_time"`
}

func (memberRow) TableName() string {
	return "silo_membership"
}

func rowFromEntry(e Entry) memberRow {
	id := e.Identity
	return memberRow{
		ID:             id.ID(),
		ClusterID:      id.ClusterID,
		ServiceID:      id.ServiceID,
		SiloName:       id.SiloName,
		SiloAddress:    id.SiloAddress,
		GatewayAddress: id.GatewayAddress,
		Generation:     id.Generation,
		Status:         string(e.Status),
		StartTime:      e.StartTime.UTC(),
		IAmAliveTime:   e.IAmAliveTime.UTC(),
	}
}

func (r memberRow) toEntry() Entry {
	return Entry{
		Identity: SiloIdentity{
			ClusterID:      r.ClusterID,
			ServiceID:      r.ServiceID,
			SiloName:       r.SiloName,
			SiloAddress:    r.SiloAddress,
			GatewayAddress: r.GatewayAddress,
			Generation:     r.Generation,
		},
		Status:       Status(r.Status),
		StartTime:    r.StartTime,
		IAmAliveTime: r.IAmAliveTime,
	}
}

// GormDirectory keeps the membership table in postgres or SQLite.
type GormDirectory struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Directory = (*GormDirectory)(nil)

// NewGormDirectory migrates the membership table. The directory owns db.
func NewGormDirectory(ctx context.Context, db *gorm.DB) (*GormDirectory, error) {
	if err := db.WithContext(ctx).AutoMigrate(&memberRow{}); err != nil {
		return nil, fmt.Errorf("migrating membership table: %w", err)
	}
	return &GormDirectory{db: db, now: time.Now}, nil
}

func (d *GormDirectory) Join(ctx context.Context, e Entry) error {
	row := rowFromEntry(e)
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&memberRow{}).Where("id = ?", row.ID).Count(&existing).Error; err != nil {
			return fmt.Errorf("checking membership of %s: %w", row.ID, err)
		}
		if existing > 0 {
			return fmt.Errorf("%s: %w", row.ID, ErrAlreadyJoined)
		}

		superseded := tx.Model(&memberRow{}).
			Where("cluster_id = ? AND silo_address = ? AND generation < ? AND status <> ?",
				row.ClusterID, row.SiloAddress, row.Generation, string(StatusDead)).
			Update("status", string(StatusDead))
		if superseded.Error != nil {
			return fmt.Errorf("retiring older incarnations of %s: %w", row.SiloAddress, superseded.Error)
		}
		if superseded.RowsAffected > 0 {
			log.Infow("declared older incarnations dead", "address", row.SiloAddress, "count", superseded.RowsAffected)
		}

		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("joining as %s: %w", row.ID, err)
		}
		return nil
	})
}

func (d *GormDirectory) UpdateStatus(ctx context.Context, id SiloIdentity, status Status) error {
	res := d.db.WithContext(ctx).Model(&memberRow{}).
		Where("id = ?", id.ID()).
		Updates(map[string]any{"status": string(status), "i_am_alive_time": d.now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("updating status of %s: %w", id.ID(), res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("updating status of %s: %w", id.ID(), ErrUnknownSilo)
	}
	return nil
}

func (d *GormDirectory) Heartbeat(ctx context.Context, id SiloIdentity) error {
	res := d.db.WithContext(ctx).Model(&memberRow{}).
		Where("id = ?", id.ID()).
		Update("i_am_alive_time", d.now().UTC())
	if res.Error != nil {
		return fmt.Errorf("heartbeat of %s: %w", id.ID(), res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("heartbeat of %s: %w", id.ID(), ErrUnknownSilo)
	}
	return nil
}

func (d *GormDirectory) Members(ctx context.Context, clusterID string) ([]Entry, error) {
	var rows []memberRow
	err := d.db.WithContext(ctx).
		Where("cluster_id = ?", clusterID).
		Order("silo_address, generation").
		Find(&rows).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("listing members of %s: %w", clusterID, err)
	}
	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = r.toEntry()
	}
	return out, nil
}

func (d *GormDirectory) Close() error {
	return gormdb.Close(d.db)
}

package database

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var migrationOptions = &gormigrate.Options{
	TableName:                 "schema_migrations",
	IDColumnName:              "id",
	IDColumnSize:              255,
	UseTransaction:            false,
	ValidateUnknownMigrations: false,
}

// Migrate applies every pending schema migration.
func Migrate(ctx context.Context, db *gorm.DB) error {
	_, span := otel.Tracer("github.com/charlesng35/invitegate/internal/database").Start(ctx, "Migrate")
	defer span.End()

	if db == nil {
		return errors.New("nil database handle")
	}
	return gormigrate.New(db.WithContext(ctx), migrationOptions, migrations()).Migrate()
}

// RollbackLast undoes the most recently applied migration.
func RollbackLast(ctx context.Context, db *gorm.DB) error {
	return gormigrate.New(db.WithContext(ctx), migrationOptions, migrations()).RollbackLast()
}

// CountMigrationsApplied reports how many migrations are recorded.
func CountMigrationsApplied(db *gorm.DB) (int64, error) {
	if !db.Migrator().HasTable(migrationOptions.TableName) {
		return 0, nil
	}
	var count int64
	err := db.Table(migrationOptions.TableName).Count(&count).Error
	return count, err
}

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		migration20241001(),
		migration20241015(),
	}
}

// Schema snapshots. Migrations never reference internal/models so that later
// model changes cannot rewrite history.

type inviteCode20241001 struct {
	ID        string     `gorm:"primaryKey;size:36"`
	Code      string     `gorm:"size:20;not null;uniqueIndex:idx_invite_codes_code"`
	CreatedBy string     `gorm:"size:64;not null;index:idx_invite_codes_created_by;index:idx_invite_codes_creator_window,priority:1"`
	UsedBy    *string    `gorm:"size:64;index:idx_invite_codes_used_by"`
	UsedAt    *time.Time
	ExpiresAt time.Time `gorm:"not null;index:idx_invite_codes_expires_at"`
	CreatedAt time.Time `gorm:"index:idx_invite_codes_created_at;index:idx_invite_codes_creator_window,priority:2"`
	UpdatedAt time.Time
}

func (inviteCode20241001) TableName() string { return "invite_codes" }

type cacheEntry20241001 struct {
	Key       string `gorm:"primaryKey;size:255"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index:idx_cache_entries_expires_at"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (cacheEntry20241001) TableName() string { return "cache_entries" }

func migration20241001() *gormigrate.Migration {
	return CreateMigrationFromActions("20241001-0000",
		CreateTableAction(&inviteCode20241001{}),
		CreateTableAction(&cacheEntry20241001{}),
	)
}

type smsDelivery20241015 struct {
	ID                string `gorm:"primaryKey;size:36"`
	InviteCodeID      string `gorm:"size:36;not null;index:idx_sms_deliveries_invite_code_id"`
	DestinationDigest string `gorm:"size:64;not null;index:idx_sms_deliveries_destination_digest"`
	Success           bool   `gorm:"not null;default:false"`
	MessageID         string `gorm:"size:128"`
	AttemptCount      int    `gorm:"not null;default:0"`
	LastError         string `gorm:"type:text"`
	Attempts          datatypes.JSON
	CompletedAt       time.Time
	CreatedAt         time.Time `gorm:"index:idx_sms_deliveries_created_at"`
	UpdatedAt         time.Time
}

func (smsDelivery20241015) TableName() string { return "sms_deliveries" }

func migration20241015() *gormigrate.Migration {
	return CreateMigrationFromActions("20241015-0000",
		CreateTableAction(&smsDelivery20241015{}),
	)
}

// MigrationAction is one reversible schema step.
type MigrationAction func(tx *gorm.DB, apply bool) error

func callerTag() string {
	if _, file, no, ok := runtime.Caller(2); ok {
		return fmt.Sprintf("[ %s:%d ]", file, no)
	}
	return ""
}

// CreateTableAction creates table on apply and drops it on rollback.
func CreateTableAction(table interface{}) MigrationAction {
	caller := callerTag()
	return func(tx *gorm.DB, apply bool) error {
		var err error
		if apply {
			err = tx.AutoMigrate(table)
		} else {
			err = tx.Migrator().DropTable(table)
		}
		if err != nil {
			return errors.Wrap(err, caller)
		}
		return nil
	}
}

// CreateMigrationFromActions bundles actions into a gormigrate migration.
// Rollback replays the actions in reverse order.
func CreateMigrationFromActions(id string, actions ...MigrationAction) *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: id,
		Migrate: func(tx *gorm.DB) error {
			for _, action := range actions {
				if err := action(tx, true); err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			for i := len(actions) - 1; i >= 0; i-- {
				if err := actions[i](tx, false); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

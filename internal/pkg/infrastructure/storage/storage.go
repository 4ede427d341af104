package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diwise/integration-nodos/domain"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type cardSnapshot struct {
	NodeID     int    `gorm:"primaryKey;autoIncrement:false"`
	Identifier string `gorm:"size:100"`
	Payload    string `gorm:"type:text"`
	ComputedAt time.Time
}

func (cardSnapshot) TableName() string {
	return "node_card_snapshots"
}

// Store keeps the last computed node cards so they can be served before the
// first refresh against the telemetry API completes.
type Store struct {
	db *gorm.DB
}

func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector

	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db)
}

func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&cardSnapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot table: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveCards replaces the stored snapshot with cards.
func (s *Store) SaveCards(ctx context.Context, cards []domain.NodeCard) error {
	rows := make([]cardSnapshot, 0, len(cards))

	for _, c := range cards {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal card for node %d: %w", c.Node.ID, err)
		}
		rows = append(rows, cardSnapshot{
			NodeID:     c.Node.ID,
			Identifier: c.Node.Identifier,
			Payload:    string(payload),
			ComputedAt: c.UpdatedAt,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&cardSnapshot{}).Error; err != nil {
			return fmt.Errorf("failed to clear snapshot: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to store snapshot: %w", err)
		}
		return nil
	})
}

func (s *Store) LoadCards(ctx context.Context) ([]domain.NodeCard, error) {
	rows := []cardSnapshot{}

	if err := s.db.WithContext(ctx).Order("node_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	cards := make([]domain.NodeCard, 0, len(rows))
	for _, r := range rows {
		card := domain.NodeCard{}
		if err := json.Unmarshal([]byte(r.Payload), &card); err != nil {
			return nil, fmt.Errorf("failed to unmarshal card for node %d: %w", r.NodeID, err)
		}
		cards = append(cards, card)
	}

	return cards, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

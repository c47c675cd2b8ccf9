package history

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/rising-multiplier/internal/round"
)

// RoundRecord is one settled round. Rows are only ever inserted.
type RoundRecord struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	StartedAt        time.Time       `json:"started_at"`
	FrozenAt         time.Time       `gorm:"index" json:"frozen_at"`
	FreezeMultiplier float64         `json:"freeze_multiplier"`
	Ticks            int             `json:"ticks"`
	SpeedFactor      float64         `json:"speed_factor"`
	Outcomes         []OutcomeRecord `gorm:"foreignKey:RoundID;constraint:OnDelete:CASCADE" json:"outcomes"`
}

type OutcomeRecord struct {
	ID               uint            `gorm:"primaryKey" json:"-"`
	RoundID          string          `gorm:"size:36;index" json:"-"`
	ParticipantID    string          `gorm:"size:36" json:"participant_id"`
	DisplayName      string          `json:"display_name"`
	Synthetic        bool            `json:"auto"`
	TargetMultiplier float64         `json:"target_multiplier"`
	Stake            decimal.Decimal `gorm:"type:numeric(20,8)" json:"stake"`
	BalanceBefore    decimal.Decimal `gorm:"type:numeric(20,8)" json:"balance_before"`
	BalanceAfter     decimal.Decimal `gorm:"type:numeric(20,8)" json:"balance_after"`
	Won              bool            `json:"won"`
}

func (RoundRecord) TableName() string   { return "rounds" }
func (OutcomeRecord) TableName() string { return "round_outcomes" }

func toRecord(res round.Result) RoundRecord {
	rec := RoundRecord{
		ID:               res.RoundID,
		StartedAt:        res.StartedAt,
		FrozenAt:         res.FrozenAt,
		FreezeMultiplier: res.FreezeMultiplier,
		Ticks:            res.Ticks,
		SpeedFactor:      res.SpeedFactor,
		Outcomes:         make([]OutcomeRecord, 0, len(res.Outcomes)),
	}
	for _, o := range res.Outcomes {
		rec.Outcomes = append(rec.Outcomes, OutcomeRecord{
			RoundID:          res.RoundID,
			ParticipantID:    o.ParticipantID,
			DisplayName:      o.DisplayName,
			Synthetic:        o.Synthetic,
			TargetMultiplier: o.Bet.TargetMultiplier,
			Stake:            o.Bet.Stake,
			BalanceBefore:    o.BalanceBefore,
			BalanceAfter:     o.BalanceAfter,
			Won:              o.Won,
		})
	}
	return rec
}

// Store persists settled rounds through gorm.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the journal tables.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	s := NewStore(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&RoundRecord{}, &OutcomeRecord{}); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

// Save inserts the round and its outcomes. Saving the same round twice is a
// no-op.
func (s *Store) Save(ctx context.Context, res round.Result) error {
	rec := toRecord(res)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Outcomes").Create(&rec)
		if created.Error != nil {
			return created.Error
		}
		if created.RowsAffected == 0 || len(rec.Outcomes) == 0 {
			return nil
		}
		return tx.Create(&rec.Outcomes).Error
	})
	if err != nil {
		return fmt.Errorf("save round %s: %w", res.RoundID, err)
	}
	return nil
}

// Recent returns the latest rounds, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RoundRecord, error) {
	var out []RoundRecord
	err := s.db.WithContext(ctx).
		Preload("Outcomes").
		Order("frozen_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("recent rounds: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

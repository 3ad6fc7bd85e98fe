package persist

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/uno-backend/internal/engine"
)

type lobbyRecord struct {
	ID        string   `gorm:"primaryKey;size:16"`
	Creator   string   `gorm:"size:64;not null"`
	Capacity  int      `gorm:"not null"`
	Joined    []string `gorm:"serializer:json"`
	Version   int      `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (lobbyRecord) TableName() string { return "pending_games" }

type matchRecord struct {
	ID        string       `gorm:"primaryKey;size:16"`
	Finished  bool         `gorm:"index"`
	State     engine.Match `gorm:"serializer:json"`
	Version   int          `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (matchRecord) TableName() string { return "games" }

// Upserts rewrite everything but the primary key and created_at.
var (
	lobbyUpsert = clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"creator", "capacity", "joined", "version", "updated_at"}),
	}
	matchUpsert = clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"finished", "state", "version", "updated_at"}),
	}
)

func toLobbyRecord(l engine.Lobby, version int) lobbyRecord {
	return lobbyRecord{ID: l.ID, Creator: l.Creator, Capacity: l.Capacity, Joined: l.Joined, Version: version}
}

func (r lobbyRecord) stored() StoredLobby {
	return StoredLobby{
		Lobby:   engine.Lobby{ID: r.ID, Creator: r.Creator, Capacity: r.Capacity, Joined: r.Joined},
		Version: r.Version,
	}
}

// SQL is a Repository on top of gorm. Match state is stored as a JSON
// document next to a few indexed columns.
type SQL struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(dsn string) (*SQL, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return NewSQL(db)
}

func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&lobbyRecord{}, &matchRecord{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &SQL{db: db}, nil
}

func (s *SQL) SaveLobby(ctx context.Context, l engine.Lobby, version int) error {
	rec := toLobbyRecord(l, version)
	return s.db.WithContext(ctx).
		Clauses(lobbyUpsert).
		Create(&rec).Error
}

func (s *SQL) DeleteLobby(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&lobbyRecord{}, "id = ?", id).Error
}

func (s *SQL) SaveMatch(ctx context.Context, id string, m engine.Match, version int) error {
	return saveMatch(s.db.WithContext(ctx), id, m, version)
}

func saveMatch(db *gorm.DB, id string, m engine.Match, version int) error {
	rec := matchRecord{ID: id, Finished: m.Finished, State: m, Version: version}
	return db.Clauses(matchUpsert).Create(&rec).Error
}

func (s *SQL) PromoteLobby(ctx context.Context, id string, m engine.Match, version int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&lobbyRecord{}, "id = ?", id).Error; err != nil {
			return err
		}
		return saveMatch(tx, id, m, version)
	})
}

func (s *SQL) Load(ctx context.Context) (Snapshot, error) {
	var lobbies []lobbyRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&lobbies).Error; err != nil {
		return Snapshot{}, fmt.Errorf("load lobbies: %w", err)
	}
	var matches []matchRecord
	if err := s.db.WithContext(ctx).Find(&matches).Error; err != nil {
		return Snapshot{}, fmt.Errorf("load matches: %w", err)
	}

	snap := Snapshot{
		Lobbies: make([]StoredLobby, len(lobbies)),
		Matches: make(map[string]StoredMatch, len(matches)),
	}
	for i, rec := range lobbies {
		snap.Lobbies[i] = rec.stored()
	}
	for _, rec := range matches {
		snap.Matches[rec.ID] = StoredMatch{Match: rec.State, Version: rec.Version}
	}
	return snap, nil
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

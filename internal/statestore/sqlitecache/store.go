package sqlitecache

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pidgin/internal/eventlog"
	"pidgin/internal/statebuilder"
)

// Store is a handle to the offline query cache database.
type Store struct {
	db *gorm.DB
}

// Open creates or opens the cache database at dbPath and ensures its
// schema exists.
func Open(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitecache: open %s: %w", dbPath, err)
	}
	if err := db.AutoMigrate(&ExperimentRecord{}, &ConversationRecord{}); err != nil {
		return nil, fmt.Errorf("sqlitecache: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertExperiment records or replaces one experiment's current manifest.
func (s *Store) UpsertExperiment(m eventlog.Manifest) error {
	rec := ExperimentRecord{
		ExperimentID:       m.ExperimentID,
		Name:               m.Name,
		Status:             m.Status,
		TotalConversations: m.TotalConversations,
		CompletedCount:     m.CompletedConversations,
		FailedCount:        m.FailedConversations,
		ConfigDigest:       m.ConfigDigest,
		CreatedAt:          m.CreatedAt,
		StartedAt:          m.StartedAt,
		EndedAt:            m.EndedAt,
	}
	return s.db.Save(&rec).Error
}

// UpsertConversation records or replaces one conversation's current state.
func (s *Store) UpsertConversation(experimentID string, st eventlog.ConversationState) error {
	rec := ConversationRecord{
		ConversationID:  st.ConversationID,
		ExperimentID:    experimentID,
		Status:          st.Status,
		CurrentTurn:     st.CurrentTurn,
		MaxTurns:        st.MaxTurns,
		LastConvergence: st.LastConvergence,
		AgentAModel:     st.AgentAModel,
		AgentBModel:     st.AgentBModel,
		UpdatedAt:       st.UpdatedAt,
	}
	return s.db.Save(&rec).Error
}

// ConversationsByStatus returns every cached conversation with the given
// status, across every experiment the cache has ingested.
func (s *Store) ConversationsByStatus(status string) ([]ConversationRecord, error) {
	var out []ConversationRecord
	err := s.db.Where("status = ?", status).Order("updated_at desc").Find(&out).Error
	return out, err
}

// Experiments returns every cached experiment, most recently created first.
func (s *Store) Experiments() ([]ExperimentRecord, error) {
	var out []ExperimentRecord
	err := s.db.Order("created_at desc").Find(&out).Error
	return out, err
}

// RebuildExperiment re-derives one experiment's cached rows from the
// authoritative manifest.json/state.json/events.jsonl files via
// statebuilder, discarding whatever was previously cached for it. Safe to
// call at any time since the cache is always rebuildable.
func RebuildExperiment(s *Store, outputDir, experimentID string) error {
	view, err := statebuilder.Build(outputDir, experimentID)
	if err != nil {
		return fmt.Errorf("sqlitecache: rebuild %s: %w", experimentID, err)
	}
	if err := s.UpsertExperiment(view.Manifest); err != nil {
		return fmt.Errorf("sqlitecache: upsert experiment %s: %w", experimentID, err)
	}
	for _, c := range view.Conversations {
		if err := s.UpsertConversation(experimentID, c.State); err != nil {
			return fmt.Errorf("sqlitecache: upsert conversation %s: %w", c.ConversationID, err)
		}
	}
	return nil
}

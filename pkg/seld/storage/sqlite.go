// Package storage persists SELD dataset records in SQLite so that feature
// extraction runs once and training jobs load the result by name.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/seldkit/pkg/ndarray"
	"github.com/himanishpuri/seldkit/pkg/seld"
)

const DefaultDBFile = "seldkit.sqlite3"
const errDBClientNil = "db client is nil"

var ErrRecordNotFound = errors.New("record not found")

const (
	arrayFeatures = "features"
	arraySED      = "sed_targets"
	arrayDOA      = "doa_targets"
)

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Record is the header row of a stored dataset record.
type Record struct {
	ID              string `gorm:"primaryKey;type:varchar(36)"`
	Name            string `gorm:"uniqueIndex:idx_record_name" json:"name"`
	FeatureChunkLen int    `json:"feature_chunk_len"`
	GTChunkLen      int    `json:"gt_chunk_len"`
	NumSamples      int    `json:"num_samples"`
	FeatureShape    string `json:"feature_shape"`
	CreatedAt       time.Time
}

// RecordArray holds one encoded ndarray of a record.
type RecordArray struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	RecordID string `gorm:"type:varchar(36);uniqueIndex:idx_record_kind,priority:1"`
	Kind     string `gorm:"uniqueIndex:idx_record_kind,priority:2"`
	Data     []byte
}

// RecordChunk is one sample's offsets, ordered by Position.
type RecordChunk struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	RecordID   string `gorm:"type:varchar(36);index:idx_chunk_record,priority:1"`
	Position   int    `gorm:"index:idx_chunk_record,priority:2"`
	FeatureIdx int
	GTIdx      int
	Filename   string
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("SELD_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Record{}, &RecordArray{}, &RecordChunk{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveRecord stores rec under name, replacing any record already saved with
// that name, and returns the new record ID.
func (c *DBClient) SaveRecord(name string, rec *seld.Record) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}
	if err := rec.Validate(); err != nil {
		return "", err
	}

	arrays := map[string]*ndarray.Array{
		arrayFeatures: rec.Features,
		arraySED:      rec.SEDTargets,
		arrayDOA:      rec.DOATargets,
	}
	rows := make([]RecordArray, 0, len(arrays))
	id := uuid.NewString()
	for kind, a := range arrays {
		raw, err := a.MarshalBinary()
		if err != nil {
			return "", fmt.Errorf("encoding %s: %w", kind, err)
		}
		rows = append(rows, RecordArray{RecordID: id, Kind: kind, Data: raw})
	}

	chunks := make([]RecordChunk, rec.NumSamples())
	for i := range chunks {
		chunks[i] = RecordChunk{
			RecordID:   id,
			Position:   i,
			FeatureIdx: rec.FeatureChunkIdxes[i],
			GTIdx:      rec.GTChunkIdxes[i],
			Filename:   rec.FilenameList[i],
		}
	}

	header := Record{
		ID:              id,
		Name:            name,
		FeatureChunkLen: rec.FeatureChunkLen,
		GTChunkLen:      rec.GTChunkLen,
		NumSamples:      rec.NumSamples(),
		FeatureShape:    fmt.Sprint(rec.Features.Shape()),
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		if err := deleteByName(tx, name); err != nil {
			return err
		}
		if err := tx.Create(&header).Error; err != nil {
			return fmt.Errorf("creating record: %w", err)
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("storing arrays: %w", err)
		}
		if len(chunks) > 0 {
			if err := tx.CreateInBatches(chunks, 500).Error; err != nil {
				return fmt.Errorf("storing chunks: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// LoadRecord rebuilds the record saved under name.
func (c *DBClient) LoadRecord(name string) (*seld.Record, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	header, err := c.GetRecord(name)
	if err != nil {
		return nil, err
	}

	var arrayRows []RecordArray
	if err := c.DB.Where("record_id = ?", header.ID).Find(&arrayRows).Error; err != nil {
		return nil, fmt.Errorf("querying arrays: %w", err)
	}
	arrays := make(map[string]*ndarray.Array, len(arrayRows))
	for _, row := range arrayRows {
		a := new(ndarray.Array)
		if err := a.UnmarshalBinary(row.Data); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", row.Kind, err)
		}
		arrays[row.Kind] = a
	}

	var chunks []RecordChunk
	if err := c.DB.Where("record_id = ?", header.ID).Order("position").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}

	rec := &seld.Record{
		Features:          arrays[arrayFeatures],
		SEDTargets:        arrays[arraySED],
		DOATargets:        arrays[arrayDOA],
		FeatureChunkIdxes: make([]int, len(chunks)),
		GTChunkIdxes:      make([]int, len(chunks)),
		FilenameList:      make([]string, len(chunks)),
		FeatureChunkLen:   header.FeatureChunkLen,
		GTChunkLen:        header.GTChunkLen,
	}
	for i, ch := range chunks {
		rec.FeatureChunkIdxes[i] = ch.FeatureIdx
		rec.GTChunkIdxes[i] = ch.GTIdx
		rec.FilenameList[i] = ch.Filename
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("stored record %q: %w", name, err)
	}
	return rec, nil
}

// GetRecord returns the header row for name.
func (c *DBClient) GetRecord(name string) (*Record, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var header Record
	err := c.DB.Where("name = ?", name).First(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrRecordNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("querying record: %w", err)
	}
	return &header, nil
}

func (c *DBClient) ListRecords() ([]Record, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var records []Record
	if err := c.DB.Order("name").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

func (c *DBClient) DeleteRecord(name string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if _, err := c.GetRecord(name); err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		return deleteByName(tx, name)
	})
}

func deleteByName(tx *gorm.DB, name string) error {
	var ids []string
	if err := tx.Model(&Record{}).Where("name = ?", name).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("querying existing record: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("record_id IN ?", ids).Delete(&RecordChunk{}).Error; err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if err := tx.Where("record_id IN ?", ids).Delete(&RecordArray{}).Error; err != nil {
		return fmt.Errorf("deleting arrays: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&Record{}).Error; err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

// Package recorder archives captures in a sqlite database so bench
// runs can be compared after the fact.
package recorder

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ammarkh95/go-analog/internal/config"
	apperrors "github.com/ammarkh95/go-analog/internal/errors"
	"github.com/ammarkh95/go-analog/internal/logger"
)

// Capture is one archived acquisition.
type Capture struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Instrument string    `gorm:"size:32;index" json:"instrument"`
	Channel    int       `json:"channel"`
	SampleRate float64   `json:"sample_rate"`
	Samples    []byte    `gorm:"type:blob" json:"-"`
	Note       string    `gorm:"size:256" json:"note"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// Instrument labels for captures.
const (
	InstrumentScope = "scope"
	InstrumentSMU   = "smu"
)

// EncodeSamples packs samples into the blob layout, little-endian
// float64.
func EncodeSamples(samples []float64) []byte {
	buf := make([]byte, len(samples)*8)
	for i, s := range samples {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(s))
	}
	return buf
}

// DecodeSamples unpacks the blob layout.
func DecodeSamples(blob []byte) []float64 {
	samples := make([]float64, len(blob)/8)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return samples
}

// Decoded returns the capture samples as floats.
func (c *Capture) Decoded() []float64 {
	return DecodeSamples(c.Samples)
}

// Store is the capture archive.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects the archive per configuration and migrates the
// schema.
func Open(cfg *config.StorageConfig) (*Store, error) {
	if cfg.Driver != "sqlite" {
		return nil, apperrors.Newf(apperrors.ErrStorageConnect,
			"unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorageConnect)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&Capture{}); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrStorageConnect, "migrating schema")
		}
	}

	return NewStore(db), nil
}

// NewStore wraps an existing connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:  db,
		log: logger.WithModule("recorder"),
	}
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorageConnect)
	}
	return sqlDB.Close()
}

// Save archives a capture, assigning an ID when missing, and returns
// the ID.
func (s *Store) Save(c *Capture) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	if err := s.db.Create(c).Error; err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrStorageInsert)
	}

	s.log.Debug("capture archived",
		zap.String("id", c.ID),
		zap.String("instrument", c.Instrument),
		zap.Int("bytes", len(c.Samples)))

	return c.ID, nil
}

// SaveSamples archives a float capture in one call.
func (s *Store) SaveSamples(instrument string, channel int, sampleRate float64, samples []float64, note string) (string, error) {
	return s.Save(&Capture{
		Instrument: instrument,
		Channel:    channel,
		SampleRate: sampleRate,
		Samples:    EncodeSamples(samples),
		Note:       note,
	})
}

// Get fetches one capture by ID.
func (s *Store) Get(id string) (*Capture, error) {
	var c Capture
	err := s.db.First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "capture %s", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorageQuery)
	}
	return &c, nil
}

// List returns captures newest first.
func (s *Store) List(limit, offset int) ([]Capture, error) {
	if limit <= 0 {
		limit = 50
	}
	var captures []Capture
	err := s.db.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&captures).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorageQuery)
	}
	return captures, nil
}

// ListByInstrument returns captures of one instrument, newest first.
func (s *Store) ListByInstrument(instrument string, limit, offset int) ([]Capture, error) {
	if limit <= 0 {
		limit = 50
	}
	var captures []Capture
	err := s.db.
		Where("instrument = ?", instrument).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&captures).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorageQuery)
	}
	return captures, nil
}

// Delete removes one capture.
func (s *Store) Delete(id string) error {
	res := s.db.Delete(&Capture{}, "id = ?", id)
	if res.Error != nil {
		return apperrors.Wrap(res.Error, apperrors.ErrStorageQuery)
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "capture %s", id)
	}
	return nil
}

// Prune drops every capture older than maxAge and returns how many
// were removed.
func (s *Store) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := s.db.Delete(&Capture{}, "created_at < ?", cutoff)
	if res.Error != nil {
		return 0, apperrors.Wrap(res.Error, apperrors.ErrStorageQuery)
	}
	if res.RowsAffected > 0 {
		s.log.Info("pruned captures",
			zap.Int64("removed", res.RowsAffected),
			zap.Time("cutoff", cutoff))
	}
	return res.RowsAffected, nil
}

// Count returns the number of archived captures.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.Model(&Capture{}).Count(&n).Error; err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrStorageQuery)
	}
	return n, nil
}

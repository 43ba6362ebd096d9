package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Capture{}))
	return NewStore(db)
}

func TestSaveAndGet(t *testing.T) {
	store := setupTestStore(t)

	samples := []float64{0.1, -0.5, 3.3, 4.99}
	id, err := store.SaveSamples(InstrumentScope, 0, 1e6, samples, "loopback check")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, InstrumentScope, got.Instrument)
	assert.Equal(t, 0, got.Channel)
	assert.Equal(t, 1e6, got.SampleRate)
	assert.Equal(t, "loopback check", got.Note)
	assert.Equal(t, samples, got.Decoded())
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetMissing(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Get("no-such-id")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestListNewestFirst(t *testing.T) {
	store := setupTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.SaveSamples(InstrumentSMU, i, 1e5, []float64{float64(i)}, "")
		require.NoError(t, err)
	}

	captures, err := store.List(10, 0)
	require.NoError(t, err)
	require.Len(t, captures, 3)

	n, err := store.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestListByInstrument(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.SaveSamples(InstrumentScope, 0, 1e6, []float64{1}, "")
	require.NoError(t, err)
	_, err = store.SaveSamples(InstrumentSMU, 0, 1e5, []float64{2}, "")
	require.NoError(t, err)

	captures, err := store.ListByInstrument(InstrumentSMU, 10, 0)
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, InstrumentSMU, captures[0].Instrument)
}

func TestDelete(t *testing.T) {
	store := setupTestStore(t)

	id, err := store.SaveSamples(InstrumentScope, 1, 1e6, []float64{1, 2}, "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(id))
	err = store.Delete(id)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestPrune(t *testing.T) {
	store := setupTestStore(t)

	old := &Capture{
		Instrument: InstrumentScope,
		SampleRate: 1e6,
		Samples:    EncodeSamples([]float64{1}),
		CreatedAt:  time.Now().Add(-48 * time.Hour),
	}
	_, err := store.Save(old)
	require.NoError(t, err)
	fresh, err := store.SaveSamples(InstrumentSMU, 0, 1e5, []float64{2}, "")
	require.NoError(t, err)

	removed, err := store.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.Get(fresh)
	assert.NoError(t, err)
	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := []float64{0, -1.5, 2.25, 1e-9}
	assert.Equal(t, samples, DecodeSamples(EncodeSamples(samples)))
	assert.Empty(t, DecodeSamples(nil))
}

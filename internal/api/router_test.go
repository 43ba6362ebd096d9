package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ammarkh95/go-analog/internal/config"
	"github.com/ammarkh95/go-analog/internal/recorder"
	"github.com/ammarkh95/go-analog/smu"
	"github.com/ammarkh95/go-analog/waveforms"
)

func testRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	require.NoError(t, config.Init(""))
	cfg := config.Get()

	scope, err := waveforms.Open(-1, -1)
	require.NoError(t, err)
	t.Cleanup(func() { scope.Close() })

	smuDev, err := smu.Open(0, 0)
	require.NoError(t, err)
	t.Cleanup(func() { smuDev.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&recorder.Capture{}))
	store := recorder.NewStore(db)

	return NewRouter(cfg, scope, smuDev, store, zap.NewNop())
}

func doJSON(t *testing.T, r *Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestHealthEndpoint(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestDeviceList(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "GET", "/api/v1/devices", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	devices, ok := data["devices"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, devices)
}

func TestWaveGenPlayAndStop(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "POST", "/api/v1/wavegen/play", gin.H{
		"output":    0,
		"signal":    "sine",
		"frequency": 1000.0,
		"amplitude": 1.0,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "POST", "/api/v1/wavegen/stop", gin.H{"output": 0})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWaveGenRejectsUnknownSignal(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "POST", "/api/v1/wavegen/play", gin.H{
		"output":    0,
		"signal":    "warble",
		"frequency": 1000.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWaveGenRejectsMissingSignal(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "POST", "/api/v1/wavegen/play", gin.H{"output": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScopeAcquire(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "POST", "/api/v1/wavegen/play", gin.H{
		"output":    0,
		"signal":    "sine",
		"frequency": 1000.0,
		"amplitude": 1.0,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "POST", "/api/v1/scope/acquire", gin.H{
		"input":       0,
		"sample_rate": 100000.0,
		"buffer_size": 1000,
		"range":       5.0,
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	samples, ok := data["samples"].([]interface{})
	require.True(t, ok)
	assert.Len(t, samples, 1000)
	assert.InDelta(t, 1.0/1.41421356, data["ac_rms"].(float64), 5e-2)
}

func TestScopeAcquireArchivesCapture(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "POST", "/api/v1/scope/acquire", gin.H{
		"input":       0,
		"sample_rate": 100000.0,
		"buffer_size": 256,
		"range":       5.0,
		"archive":     true,
		"note":        "idle input",
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	id, ok := data["capture_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	w = doJSON(t, r, "GET", "/api/v1/captures/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	data = decodeData(t, w)
	capture, ok := data["capture"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "scope", capture["instrument"])
	assert.Equal(t, "idle input", capture["note"])
	samples, ok := data["samples"].([]interface{})
	require.True(t, ok)
	assert.Len(t, samples, 256)
}

func TestSuppliesRoundTrip(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "POST", "/api/v1/supplies", gin.H{
		"positive": 3.3,
		"negative": -3.3,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/api/v1/supplies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.InDelta(t, 3.3, data["positive_voltage"].(float64), 1e-2)

	w = doJSON(t, r, "DELETE", "/api/v1/supplies", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDigitalRoundTrip(t *testing.T) {
	r := testRouter(t)

	directions := uint16(0x00FF)
	outputs := uint16(0x00A5)
	w := doJSON(t, r, "POST", "/api/v1/digital", gin.H{
		"directions": directions,
		"outputs":    outputs,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/api/v1/digital", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(0x00A5), data["pins"].(float64))
}

func TestSMUConfigureAndRead(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "POST", "/api/v1/smu/channels", gin.H{
		"channel": 0,
		"mode":    "svmi",
		"value":   2.5,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/api/v1/smu/read?channel=0&count=200", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.InDelta(t, 2.5, data["mean_voltage"].(float64), 1e-2)
}

func TestSMURejectsUnknownMode(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "POST", "/api/v1/smu/channels", gin.H{
		"channel": 0,
		"mode":    "svmi_turbo",
		"value":   2.5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSMURejectsOutOfRangeLevel(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "POST", "/api/v1/smu/channels", gin.H{
		"channel": 0,
		"mode":    "svmi",
		"value":   7.5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSMUStatus(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "GET", "/api/v1/smu/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.NotEmpty(t, data["serial"])
	assert.Equal(t, false, data["overcurrent"])
}

func TestCaptureListAndDelete(t *testing.T) {
	r := testRouter(t)

	for i := 0; i < 3; i++ {
		w := doJSON(t, r, "POST", "/api/v1/scope/acquire", gin.H{
			"input":       0,
			"sample_rate": 100000.0,
			"buffer_size": 64,
			"range":       5.0,
			"archive":     true,
			"note":        fmt.Sprintf("sweep %d", i),
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, r, "GET", "/api/v1/captures", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(3), data["count"].(float64))

	captures := data["captures"].([]interface{})
	first := captures[0].(map[string]interface{})
	id := first["id"].(string)

	w = doJSON(t, r, "DELETE", "/api/v1/captures/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/api/v1/captures/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCaptureNotFound(t *testing.T) {
	r := testRouter(t)

	w := doJSON(t, r, "GET", "/api/v1/captures/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMissingSMUReturnsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	require.NoError(t, config.Init(""))
	cfg := config.Get()

	scope, err := waveforms.Open(-1, -1)
	require.NoError(t, err)
	t.Cleanup(func() { scope.Close() })

	r := NewRouter(cfg, scope, nil, nil, zap.NewNop())

	w := doJSON(t, r, "GET", "/api/v1/smu/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

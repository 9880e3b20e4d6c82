package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lateware/xm5ctl/internal/api/middleware"
	"github.com/lateware/xm5ctl/internal/protocol/mdr"
	"github.com/lateware/xm5ctl/internal/session"
)

// fakeSink records submitted commands instead of driving a session.
type fakeSink struct {
	cmds []mdr.Command
	err  error
}

func (f *fakeSink) Submit(_ context.Context, cmd mdr.Command) error {
	if f.err != nil {
		return f.err
	}
	f.cmds = append(f.cmds, cmd)
	return nil
}

func newTestRouter(t *testing.T, state *session.State, sink CommandSink) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, state, sink, nil, zap.NewNop())
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetStatus(t *testing.T) {
	state := session.NewState()
	state.SetConnected(true)
	state.Apply(mdr.HeadphonesBattery{Left: 90, Right: 85})

	r := newTestRouter(t, state, &fakeSink{})
	w := doJSON(t, r, http.MethodGet, "/api/status", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.True(t, snap.Connected)
	require.NotNil(t, snap.Battery.Left)
	assert.Equal(t, uint8(90), *snap.Battery.Left)
}

func TestGetBattery_RefreshQueuesQueries(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRouter(t, session.NewState(), sink)

	w := doJSON(t, r, http.MethodGet, "/api/battery?refresh=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sink.cmds, 2)
	assert.Equal(t, mdr.GetBatteryStatus{Type: mdr.BatteryHeadphones}, sink.cmds[0])
	assert.Equal(t, mdr.GetBatteryStatus{Type: mdr.BatteryCase}, sink.cmds[1])

	// Without refresh the cache is served as-is, no commands.
	sink.cmds = nil
	w = doJSON(t, r, http.MethodGet, "/api/battery", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sink.cmds)
}

func TestSetAnc(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRouter(t, session.NewState(), sink)

	w := doJSON(t, r, http.MethodPost, "/api/anc", gin.H{
		"mode": "ambient", "voice_filtering": true, "ambient_level": 15,
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, sink.cmds, 2)
	assert.Equal(t, mdr.AncSet{
		Mode:           mdr.AncAmbientSound,
		VoiceFiltering: true,
		AmbientLevel:   15,
	}, sink.cmds[0])
	assert.Equal(t, mdr.GetAncStatus{}, sink.cmds[1])
}

func TestSetAnc_Validation(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRouter(t, session.NewState(), sink)

	for name, body := range map[string]gin.H{
		"unknown mode":       {"mode": "turbo"},
		"level out of range": {"mode": "ambient", "ambient_level": 21},
		"missing mode":       {"ambient_level": 5},
	} {
		w := doJSON(t, r, http.MethodPost, "/api/anc", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
	assert.Empty(t, sink.cmds)
}

func TestSetEqualizerPreset(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRouter(t, session.NewState(), sink)

	w := doJSON(t, r, http.MethodPost, "/api/equalizer/preset", gin.H{"preset": "bass-boost"})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, sink.cmds, 2)
	assert.Equal(t, mdr.ChangeEqualizerPreset{Preset: mdr.PresetBassBoost}, sink.cmds[0])

	w = doJSON(t, r, http.MethodPost, "/api/equalizer/preset", gin.H{"preset": "loudest"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetEqualizerBands(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRouter(t, session.NewState(), sink)

	w := doJSON(t, r, http.MethodPost, "/api/equalizer/bands", gin.H{
		"bands": []int8{5, 0, -3, 0, 2, 10},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, sink.cmds, 2)
	assert.Equal(t, mdr.ChangeEqualizerSetting{
		Preset: mdr.PresetManual,
		Bass:   5, Band1000: -3, Band6300: 2, Band16000: 10,
	}, sink.cmds[0])

	// Out of range levels must be rejected before they reach the encoder.
	w = doJSON(t, r, http.MethodPost, "/api/equalizer/bands", gin.H{
		"bands": []int8{11, 0, 0, 0, 0, 0},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetEqualizerBands_CustomPreset(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRouter(t, session.NewState(), sink)

	w := doJSON(t, r, http.MethodPost, "/api/equalizer/bands", gin.H{
		"preset": "custom1",
		"bands":  []int8{0, 0, 0, 0, 0, 0},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	cmd := sink.cmds[0].(mdr.ChangeEqualizerSetting)
	assert.Equal(t, mdr.PresetCustom1, cmd.Preset)
}

func TestSetSoundPressureMeasure(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRouter(t, session.NewState(), sink)

	w := doJSON(t, r, http.MethodPost, "/api/soundpressure/measure", gin.H{"on": true})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, sink.cmds, 1)
	assert.Equal(t, mdr.SoundPressureMeasure{On: true}, sink.cmds[0])

	// "on" is a required pointer so false still binds, absence does not.
	w = doJSON(t, r, http.MethodPost, "/api/soundpressure/measure", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitFailureMapsTo503(t *testing.T) {
	sink := &fakeSink{err: errors.New("queue full")}
	r := newTestRouter(t, session.NewState(), sink)

	w := doJSON(t, r, http.MethodPost, "/api/anc", gin.H{"mode": "off"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimitOnWriteRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rl := middleware.NewRateLimiter(1, 1)
	RegisterRoutes(r, session.NewState(), &fakeSink{}, rl, zap.NewNop())

	first := doJSON(t, r, http.MethodPost, "/api/soundpressure/measure", gin.H{"on": false})
	assert.Equal(t, http.StatusAccepted, first.Code)
	second := doJSON(t, r, http.MethodPost, "/api/soundpressure/measure", gin.H{"on": false})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Read routes stay outside the limiter.
	read := doJSON(t, r, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, read.Code)
}

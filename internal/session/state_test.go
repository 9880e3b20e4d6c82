package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lateware/xm5ctl/internal/protocol/mdr"
)

func TestState_ApplyAndSnapshot(t *testing.T) {
	s := NewState()
	assert.False(t, s.Connected())

	s.SetConnected(true)
	s.Apply(mdr.HeadphonesBattery{Left: 80, Right: 75})
	s.Apply(mdr.CaseBattery{Level: 60})
	s.Apply(mdr.AncStatus{Mode: mdr.AncAmbientSound, VoiceFiltering: true, AmbientLevel: 12})
	s.Apply(mdr.CodecStatus{Codec: mdr.CodecLDAC})
	s.Apply(mdr.EqualizerStatus{Preset: mdr.PresetBassBoost, Bass: 5, Band16000: -3})

	snap := s.Snapshot()
	assert.True(t, snap.Connected)
	require.NotNil(t, snap.Battery.Left)
	assert.Equal(t, uint8(80), *snap.Battery.Left)
	assert.Equal(t, uint8(75), *snap.Battery.Right)
	assert.Equal(t, uint8(60), *snap.Battery.Case)
	require.NotNil(t, snap.Anc)
	assert.Equal(t, "ambient", snap.Anc.Mode)
	assert.Equal(t, uint8(12), snap.Anc.AmbientLevel)
	assert.Equal(t, "LDAC", snap.Codec)
	require.NotNil(t, snap.Equalizer)
	assert.Equal(t, "bass-boost", snap.Equalizer.Preset)
	assert.Equal(t, [6]int8{5, 0, 0, 0, 0, -3}, snap.Equalizer.Bands)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestState_SoundPressure(t *testing.T) {
	s := NewState()
	s.Apply(mdr.SoundPressureMeasureReply{On: true})
	snap := s.Snapshot()
	require.NotNil(t, snap.SoundPressure)
	require.NotNil(t, snap.SoundPressure.Measuring)
	assert.True(t, *snap.SoundPressure.Measuring)
	assert.Nil(t, snap.SoundPressure.DB)

	s.Apply(mdr.SoundPressure{DB: 66})
	snap = s.Snapshot()
	require.NotNil(t, snap.SoundPressure.DB)
	assert.Equal(t, uint8(66), *snap.SoundPressure.DB)
}

// Snapshot must be a deep copy: later updates cannot leak into a snapshot
// already handed out.
func TestState_SnapshotIsolation(t *testing.T) {
	s := NewState()
	s.Apply(mdr.HeadphonesBattery{Left: 50, Right: 50})
	snap := s.Snapshot()

	s.Apply(mdr.HeadphonesBattery{Left: 10, Right: 10})
	assert.Equal(t, uint8(50), *snap.Battery.Left)
}

func TestState_InitReplyIsNoop(t *testing.T) {
	s := NewState()
	s.Apply(mdr.InitReply{})
	snap := s.Snapshot()
	assert.Nil(t, snap.Battery.Left)
	assert.Nil(t, snap.Equalizer)
}

package mdr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Init frame bytes as captured in hci logs.
func TestBuildCommand_InitFixture(t *testing.T) {
	want := []byte{0x3e, 0x0c, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x0e, 0x3c}
	assert.Equal(t, want, BuildCommand(Init{}, 0))
}

// Ack for the device's init reply (seq 1), also from hci logs.
func TestBuildCommand_InitAckFixture(t *testing.T) {
	want := []byte{0x3e, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x3c}
	assert.Equal(t, want, BuildCommand(Ack{}, 1))
}

func TestBuildCommand_AckSeqWraps(t *testing.T) {
	// 1 - 0 = 1, 1 - 2 wraps to 0xff
	assert.Equal(t, byte(0x01), BuildCommand(Ack{}, 0)[2])
	assert.Equal(t, byte(0xff), BuildCommand(Ack{}, 2)[2])
}

func TestBuildCommand_RoundTrip(t *testing.T) {
	cmds := []Command{
		Init{},
		AncSet{Mode: AncAmbientSound, AmbientLevel: 15, VoiceFiltering: true},
		AncSet{Dragging: true, Mode: AncOff},
		GetAncStatus{},
		ChangeEqualizerPreset{Preset: PresetBassBoost},
		ChangeEqualizerSetting{Bass: -10, Band400: 10, Band1000: 0, Band2500: 3, Band6300: -7, Band16000: 1},
		GetBatteryStatus{Type: BatteryCase},
		GetBatteryStatus{Type: BatteryHeadphones},
		GetEqualizerSettings{},
		GetCodec{},
		SoundPressureMeasure{On: true},
		GetSoundPressure{},
	}
	for _, cmd := range cmds {
		for _, seq := range []uint8{0, 1, 0x69, 0x3d, 0xff} {
			raw := BuildCommand(cmd, seq)
			p := NewFrameParser()
			res := p.Parse(raw)
			require.Equal(t, StatusReady, res.Status, "cmd %T seq %d", cmd, seq)
			require.Equal(t, len(raw), res.Consumed)
			require.True(t, res.Msg.KindKnown)
			assert.Equal(t, cmd.messageType(), res.Msg.Kind)
			assert.Nil(t, res.Msg.ChecksumErr)
			assert.Equal(t, cmd.body(), append([]byte{}, res.Msg.Payload...))
			assert.Equal(t, seq, res.Msg.SeqNum)
		}
	}
}

// Delimiter values inside the escaped region must come out as exactly one
// escape pair each, and decode back to the original byte.
func TestBuildCommand_EscapesDelimiters(t *testing.T) {
	for _, seq := range []uint8{MessageHeader, MessageTrailer, EscapeByte} {
		raw := BuildCommand(GetCodec{}, seq)
		// header, trailer literal; escaped seq adds one byte
		assert.Equal(t, []byte{EscapeByte, seq & EscapeMask}, raw[2:4], "seq 0x%02x", seq)

		p := NewFrameParser()
		res := p.Parse(raw)
		require.Equal(t, StatusReady, res.Status)
		assert.Equal(t, seq, res.Msg.SeqNum)
		assert.Nil(t, res.Msg.ChecksumErr)
	}
}

func TestBuildCommand_AncSetBody(t *testing.T) {
	body := AncSet{
		Dragging:       false,
		Mode:           AncAmbientSound,
		VoiceFiltering: false,
		AmbientLevel:   15,
	}.body()
	assert.Equal(t, []byte{0x68, 0x17, 0x01, 0x01, 0x01, 0x00, 0x0f}, body)

	body = AncSet{Dragging: true, Mode: AncActiveNoiseCanceling, VoiceFiltering: true, AmbientLevel: 20}.body()
	assert.Equal(t, []byte{0x68, 0x17, 0x00, 0x01, 0x00, 0x01, 0x14}, body)
}

func TestBuildCommand_EqualizerBodies(t *testing.T) {
	assert.Equal(t, []byte{0x58, 0x00, 0xa2, 0x00}, ChangeEqualizerPreset{Preset: PresetCustom2}.body())

	// band levels stored shifted by +10; zero-value preset falls back to manual
	body := ChangeEqualizerSetting{Bass: -10, Band400: 10, Band6300: -1}.body()
	assert.Equal(t, []byte{0x58, 0x00, 0xa0, 0x06, 0x00, 0x14, 0x0a, 0x0a, 0x09, 0x0a}, body)
}

// Sound-pressure opcodes sit one below their reply tags (0x59/0x5b) and go
// out as Command2, so the 0x58/0x5a bytes never clash with the Command1
// equalizer opcodes.
func TestBuildCommand_SoundPressureBodies(t *testing.T) {
	assert.Equal(t, []byte{0x5a, 0x03}, GetSoundPressure{}.body())
	assert.Equal(t, []byte{0x58, 0x03, 0x01}, SoundPressureMeasure{On: true}.body())
	assert.Equal(t, []byte{0x58, 0x03, 0x00}, SoundPressureMeasure{On: false}.body())

	raw := BuildCommand(GetSoundPressure{}, 0)
	assert.Equal(t, byte(MessageTypeCommand2), raw[1])
}

func TestBuildCommand_ContractViolationsPanic(t *testing.T) {
	assert.Panics(t, func() { BuildCommand(AncSet{AmbientLevel: 21}, 0) })
	assert.Panics(t, func() { BuildCommand(ChangeEqualizerSetting{Bass: 11}, 0) })
	assert.Panics(t, func() { BuildCommand(ChangeEqualizerSetting{Band16000: -11}, 0) })
}

func TestChecksum_Wraps(t *testing.T) {
	assert.Equal(t, byte(0x00), Checksum(nil))
	assert.Equal(t, byte(0xfe), Checksum([]byte{0xff, 0xff}))
	assert.Equal(t, byte(0x0e), Checksum([]byte{0x0c, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00}))
}

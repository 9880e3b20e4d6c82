package session

import (
	"sync"
	"time"

	"github.com/lateware/xm5ctl/internal/protocol/mdr"
)

// BatteryState 最近一次上报的电量
type BatteryState struct {
	Left  *uint8 `json:"left,omitempty"`
	Right *uint8 `json:"right,omitempty"`
	Case  *uint8 `json:"case,omitempty"`
}

// EqualizerState 最近一次上报的均衡器设置
type EqualizerState struct {
	Preset string  `json:"preset"`
	Bands  [6]int8 `json:"bands"` // bass, 400, 1k, 2.5k, 6.3k, 16k
}

// AncState 最近一次上报的降噪状态
type AncState struct {
	Mode           string `json:"mode"`
	VoiceFiltering bool   `json:"voice_filtering"`
	AmbientLevel   uint8  `json:"ambient_level"`
}

// SoundPressureState 声压测量状态与读数
type SoundPressureState struct {
	Measuring *bool  `json:"measuring,omitempty"`
	DB        *uint8 `json:"db,omitempty"`
}

// Snapshot 设备状态快照，HTTP API 直接序列化输出
type Snapshot struct {
	Connected     bool                `json:"connected"`
	UpdatedAt     time.Time           `json:"updated_at,omitzero"`
	Battery       BatteryState        `json:"battery"`
	Equalizer     *EqualizerState     `json:"equalizer,omitempty"`
	Anc           *AncState           `json:"anc,omitempty"`
	Codec         string              `json:"codec,omitempty"`
	SoundPressure *SoundPressureState `json:"sound_pressure,omitempty"`
}

// State 设备状态缓存。会话驱动消费到的每个 Payload 依次套用到缓存上，
// API 侧只读快照。单写多读，互斥锁足够。
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewState 创建空缓存
func NewState() *State {
	return &State{}
}

// SetConnected 标记会话事件循环的存活状态
func (s *State) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Connected = connected
}

// Connected 返回会话是否存活（readyz 用）
func (s *State) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Connected
}

// Apply 将一个解码后的载荷套用到缓存
func (s *State) Apply(p mdr.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.UpdatedAt = time.Now()

	switch v := p.(type) {
	case mdr.InitReply:
		// 握手应答不携带状态

	case mdr.HeadphonesBattery:
		left, right := v.Left, v.Right
		s.snap.Battery.Left = &left
		s.snap.Battery.Right = &right

	case mdr.CaseBattery:
		level := v.Level
		s.snap.Battery.Case = &level

	case mdr.EqualizerStatus:
		s.snap.Equalizer = &EqualizerState{
			Preset: v.Preset.String(),
			Bands:  [6]int8{v.Bass, v.Band400, v.Band1000, v.Band2500, v.Band6300, v.Band16000},
		}

	case mdr.AncStatus:
		s.snap.Anc = &AncState{
			Mode:           v.Mode.String(),
			VoiceFiltering: v.VoiceFiltering,
			AmbientLevel:   v.AmbientLevel,
		}

	case mdr.CodecStatus:
		s.snap.Codec = v.Codec.String()

	case mdr.SoundPressureMeasureReply:
		on := v.On
		if s.snap.SoundPressure == nil {
			s.snap.SoundPressure = &SoundPressureState{}
		}
		s.snap.SoundPressure.Measuring = &on

	case mdr.SoundPressure:
		db := v.DB
		if s.snap.SoundPressure == nil {
			s.snap.SoundPressure = &SoundPressureState{}
		}
		s.snap.SoundPressure.DB = &db
	}
}

// Snapshot 返回当前快照的深拷贝
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.snap
	out.Battery.Left = copyU8(s.snap.Battery.Left)
	out.Battery.Right = copyU8(s.snap.Battery.Right)
	out.Battery.Case = copyU8(s.snap.Battery.Case)
	if s.snap.Equalizer != nil {
		eq := *s.snap.Equalizer
		out.Equalizer = &eq
	}
	if s.snap.Anc != nil {
		anc := *s.snap.Anc
		out.Anc = &anc
	}
	if s.snap.SoundPressure != nil {
		sp := SoundPressureState{}
		if s.snap.SoundPressure.Measuring != nil {
			on := *s.snap.SoundPressure.Measuring
			sp.Measuring = &on
		}
		sp.DB = copyU8(s.snap.SoundPressure.DB)
		out.SoundPressure = &sp
	}
	return out
}

func copyU8(v *uint8) *uint8 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

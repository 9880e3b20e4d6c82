package mdr

import (
	"errors"
	"fmt"
)

// PayloadType 载荷子类型。子类型字节按帧类型分命名空间解释：
// 同一个字节在 Command1 与 Command2 下含义不同，查表时必须带上帧类型。
type PayloadType int

const (
	PayloadInitReply PayloadType = iota
	PayloadBatteryLevel
	PayloadBatteryLevelNotify
	PayloadEqualizer
	PayloadEqualizerNotify
	PayloadAncStatus
	PayloadAncStatusNotify
	PayloadCodecGet
	PayloadCodecNotify
	PayloadSoundPressure
	PayloadSoundPressureMeasureReply
)

func (t PayloadType) String() string {
	switch t {
	case PayloadInitReply:
		return "init-reply"
	case PayloadBatteryLevel:
		return "battery-level"
	case PayloadBatteryLevelNotify:
		return "battery-level-notify"
	case PayloadEqualizer:
		return "equalizer"
	case PayloadEqualizerNotify:
		return "equalizer-notify"
	case PayloadAncStatus:
		return "anc-status"
	case PayloadAncStatusNotify:
		return "anc-status-notify"
	case PayloadCodecGet:
		return "codec"
	case PayloadCodecNotify:
		return "codec-notify"
	case PayloadSoundPressure:
		return "sound-pressure"
	case PayloadSoundPressureMeasureReply:
		return "sound-pressure-measure-reply"
	}
	return "unknown"
}

// Command1 命名空间的子类型表
var payloadTypesCommand1 = map[byte]PayloadType{
	0x01: PayloadInitReply,
	0x13: PayloadCodecGet,
	0x15: PayloadCodecNotify,
	0x23: PayloadBatteryLevel,
	0x25: PayloadBatteryLevelNotify,
	0x57: PayloadEqualizer,
	0x59: PayloadEqualizerNotify,
	0x67: PayloadAncStatus,
	0x69: PayloadAncStatusNotify,
}

// Command2 命名空间的子类型表（声压扩展），标签来自抓包：
// 3e0e0000000004590301006f3c（测量开关应答）
// 3e0e01000000045b034203b63c（声压读数）
// 0x59 在 Command1 里是均衡器通知，命名空间必须按帧类型分表。
var payloadTypesCommand2 = map[byte]PayloadType{
	0x59: PayloadSoundPressureMeasureReply,
	0x5b: PayloadSoundPressure,
}

// PayloadTypeFromByte 按帧类型命名空间识别载荷子类型字节
func PayloadTypeFromByte(kind MessageType, b byte) (PayloadType, bool) {
	var table map[byte]PayloadType
	switch kind {
	case MessageTypeCommand1:
		table = payloadTypesCommand1
	case MessageTypeCommand2:
		table = payloadTypesCommand2
	default:
		return 0, false
	}
	t, ok := table[b]
	return t, ok
}

// 各载荷类型的最小长度（字节），短于此直接拒绝而非越界读取
var payloadMinLen = map[PayloadType]int{
	PayloadInitReply:                 1,
	PayloadBatteryLevel:              5,
	PayloadBatteryLevelNotify:        5,
	PayloadEqualizer:                 10,
	PayloadEqualizerNotify:           10,
	PayloadAncStatus:                 7,
	PayloadAncStatusNotify:           7,
	PayloadCodecGet:                  3,
	PayloadCodecNotify:               3,
	PayloadSoundPressure:             3,
	PayloadSoundPressureMeasureReply: 4,
}

// Payload 解码后的入站数据，交由上层消费（状态缓存 / API）
type Payload interface {
	PayloadType() PayloadType
}

// InitReply 握手应答
type InitReply struct{}

// CaseBattery 充电盒电量
type CaseBattery struct {
	Level uint8
}

// HeadphonesBattery 左右耳电量
type HeadphonesBattery struct {
	Left  uint8
	Right uint8
}

// EqualizerStatus 均衡器当前预设与六段电平
type EqualizerStatus struct {
	Preset    EqualizerPreset
	Bass      int8
	Band400   int8
	Band1000  int8
	Band2500  int8
	Band6300  int8
	Band16000 int8
}

// AncStatus 降噪状态
type AncStatus struct {
	Mode           AncMode
	VoiceFiltering bool
	AmbientLevel   uint8
}

// CodecStatus 当前音频编码
type CodecStatus struct {
	Codec Codec
}

// SoundPressureMeasureReply 声压测量开关应答
type SoundPressureMeasureReply struct {
	On bool
}

// SoundPressure 声压读数（类 dB 原始值）
type SoundPressure struct {
	DB uint8
}

func (InitReply) PayloadType() PayloadType         { return PayloadInitReply }
func (CaseBattery) PayloadType() PayloadType       { return PayloadBatteryLevel }
func (HeadphonesBattery) PayloadType() PayloadType { return PayloadBatteryLevel }
func (EqualizerStatus) PayloadType() PayloadType   { return PayloadEqualizer }
func (AncStatus) PayloadType() PayloadType         { return PayloadAncStatus }
func (CodecStatus) PayloadType() PayloadType       { return PayloadCodecGet }
func (SoundPressureMeasureReply) PayloadType() PayloadType {
	return PayloadSoundPressureMeasureReply
}
func (SoundPressure) PayloadType() PayloadType { return PayloadSoundPressure }

// ErrEmptyPayload 载荷为空
var ErrEmptyPayload = errors.New("mdr: empty payload")

// UnknownPayloadTypeError 子类型字节在该命名空间内无定义
type UnknownPayloadTypeError struct {
	Kind byte
}

func (e *UnknownPayloadTypeError) Error() string {
	return fmt.Sprintf("mdr: unknown payload type 0x%02x", e.Kind)
}

// UnknownBatteryTypeError 电量类型字节无定义
type UnknownBatteryTypeError struct {
	Byte byte
}

func (e *UnknownBatteryTypeError) Error() string {
	return fmt.Sprintf("mdr: unknown battery type 0x%02x", e.Byte)
}

// UnknownEqualizerPresetError 均衡器预设字节无定义
type UnknownEqualizerPresetError struct {
	Byte byte
}

func (e *UnknownEqualizerPresetError) Error() string {
	return fmt.Sprintf("mdr: unknown equalizer preset 0x%02x", e.Byte)
}

// UnknownCodecError 编码字节无定义
type UnknownCodecError struct {
	Byte byte
}

func (e *UnknownCodecError) Error() string {
	return fmt.Sprintf("mdr: unknown codec 0x%02x", e.Byte)
}

// PayloadTooSmallError 载荷短于该子类型的最小长度
type PayloadTooSmallError struct {
	Type PayloadType
}

func (e *PayloadTooSmallError) Error() string {
	return fmt.Sprintf("mdr: payload too small for type %s", e.Type)
}

// ParsePayload 按固定偏移解码一帧的载荷字节。纯函数：要么完整解码，
// 要么返回具体错误，不存在带警告的部分成功。
func ParsePayload(payload []byte, kind MessageType) (Payload, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	ptype, ok := PayloadTypeFromByte(kind, payload[0])
	if !ok {
		return nil, &UnknownPayloadTypeError{Kind: payload[0]}
	}
	if len(payload) < payloadMinLen[ptype] {
		return nil, &PayloadTooSmallError{Type: ptype}
	}

	switch ptype {
	case PayloadInitReply:
		return InitReply{}, nil

	case PayloadBatteryLevel, PayloadBatteryLevelNotify:
		btype, ok := BatteryTypeFromByte(payload[1])
		if !ok {
			return nil, &UnknownBatteryTypeError{Byte: payload[1]}
		}
		if btype == BatteryCase {
			return CaseBattery{Level: payload[2]}, nil
		}
		return HeadphonesBattery{Left: payload[2], Right: payload[4]}, nil

	case PayloadEqualizer, PayloadEqualizerNotify:
		preset, ok := EqualizerPresetFromByte(payload[2])
		if !ok {
			return nil, &UnknownEqualizerPresetError{Byte: payload[2]}
		}
		// 线上以 value+10 存储，还原为有符号电平
		return EqualizerStatus{
			Preset:    preset,
			Bass:      int8(payload[4]) - 10,
			Band400:   int8(payload[5]) - 10,
			Band1000:  int8(payload[6]) - 10,
			Band2500:  int8(payload[7]) - 10,
			Band6300:  int8(payload[8]) - 10,
			Band16000: int8(payload[9]) - 10,
		}, nil

	case PayloadAncStatus, PayloadAncStatusNotify:
		mode := AncAmbientSound
		if payload[3] == 0 {
			mode = AncOff
		} else if payload[4] == 0 {
			mode = AncActiveNoiseCanceling
		}
		return AncStatus{
			Mode:           mode,
			VoiceFiltering: payload[5] == 1,
			AmbientLevel:   payload[6],
		}, nil

	case PayloadCodecGet, PayloadCodecNotify:
		codec, ok := CodecFromByte(payload[2])
		if !ok {
			return nil, &UnknownCodecError{Byte: payload[2]}
		}
		return CodecStatus{Codec: codec}, nil

	case PayloadSoundPressureMeasureReply:
		return SoundPressureMeasureReply{On: payload[3] == 0}, nil

	case PayloadSoundPressure:
		// 读数两侧的包装字节含义未知，只取已确认的读数本身
		return SoundPressure{DB: payload[2]}, nil
	}
	return nil, &UnknownPayloadTypeError{Kind: payload[0]}
}

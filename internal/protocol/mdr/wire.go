// Package mdr 实现 Sony MDR 系列耳机（WF-1000XM5）的 RFCOMM 二进制协议：
// 帧编解码（转义 + 校验和）、流式帧解析、命令编码与载荷解码。
package mdr

// 帧定界与转义常量
// 布局：header 0x3e | [转义区: type seq lenBE(4) payload... checksum] | trailer 0x3c
// 转义区内出现 header/trailer/escape 时，写为 escape + (b & escapeMask)，
// 解码时对下一个字节按位或上 ^escapeMask 还原。
const (
	MessageHeader  = 0x3e
	MessageTrailer = 0x3c
	EscapeByte     = 0x3d
	EscapeMask     = 0b1110_1111
)

// MessageType 帧类型字节
type MessageType byte

const (
	MessageTypeAck      MessageType = 0x01
	MessageTypeCommand1 MessageType = 0x0c
	MessageTypeCommand2 MessageType = 0x0e
)

// MessageTypeFromByte 识别帧类型；未知值返回 false（帧本身仍需被应答/丢弃，不作为解析失败）
func MessageTypeFromByte(b byte) (MessageType, bool) {
	switch b {
	case 0x01:
		return MessageTypeAck, true
	case 0x0c:
		return MessageTypeCommand1, true
	case 0x0e:
		return MessageTypeCommand2, true
	}
	return 0, false
}

func (t MessageType) String() string {
	switch t {
	case MessageTypeAck:
		return "ack"
	case MessageTypeCommand1:
		return "command1"
	case MessageTypeCommand2:
		return "command2"
	}
	return "unknown"
}

// EqualizerPreset 均衡器预设字节码
type EqualizerPreset byte

const (
	PresetOff         EqualizerPreset = 0x00
	PresetBright      EqualizerPreset = 0x10
	PresetExcited     EqualizerPreset = 0x11
	PresetMellow      EqualizerPreset = 0x12
	PresetRelaxed     EqualizerPreset = 0x13
	PresetVocal       EqualizerPreset = 0x14
	PresetTrebleBoost EqualizerPreset = 0x15
	PresetBassBoost   EqualizerPreset = 0x16
	PresetSpeech      EqualizerPreset = 0x17
	PresetManual      EqualizerPreset = 0xa0
	PresetCustom1     EqualizerPreset = 0xa1
	PresetCustom2     EqualizerPreset = 0xa2
)

// EqualizerPresetFromByte 识别预设字节
func EqualizerPresetFromByte(b byte) (EqualizerPreset, bool) {
	switch p := EqualizerPreset(b); p {
	case PresetOff, PresetBright, PresetExcited, PresetMellow, PresetRelaxed,
		PresetVocal, PresetTrebleBoost, PresetBassBoost, PresetSpeech,
		PresetManual, PresetCustom1, PresetCustom2:
		return p, true
	}
	return 0, false
}

func (p EqualizerPreset) String() string {
	switch p {
	case PresetOff:
		return "off"
	case PresetBright:
		return "bright"
	case PresetExcited:
		return "excited"
	case PresetMellow:
		return "mellow"
	case PresetRelaxed:
		return "relaxed"
	case PresetVocal:
		return "vocal"
	case PresetTrebleBoost:
		return "treble-boost"
	case PresetBassBoost:
		return "bass-boost"
	case PresetSpeech:
		return "speech"
	case PresetManual:
		return "manual"
	case PresetCustom1:
		return "custom1"
	case PresetCustom2:
		return "custom2"
	}
	return "unknown"
}

// EqualizerPresetFromName 解析配置/API 中的预设名
func EqualizerPresetFromName(name string) (EqualizerPreset, bool) {
	for _, p := range []EqualizerPreset{
		PresetOff, PresetBright, PresetExcited, PresetMellow, PresetRelaxed,
		PresetVocal, PresetTrebleBoost, PresetBassBoost, PresetSpeech,
		PresetManual, PresetCustom1, PresetCustom2,
	} {
		if p.String() == name {
			return p, true
		}
	}
	return 0, false
}

// AncMode 降噪模式
type AncMode byte

const (
	AncOff AncMode = iota
	AncActiveNoiseCanceling
	AncAmbientSound
)

func (m AncMode) String() string {
	switch m {
	case AncOff:
		return "off"
	case AncActiveNoiseCanceling:
		return "anc"
	case AncAmbientSound:
		return "ambient"
	}
	return "unknown"
}

// AncModeFromName 解析配置/API 中的模式名
func AncModeFromName(name string) (AncMode, bool) {
	switch name {
	case "off":
		return AncOff, true
	case "anc":
		return AncActiveNoiseCanceling, true
	case "ambient":
		return AncAmbientSound, true
	}
	return 0, false
}

// BatteryType 电量查询对象
type BatteryType byte

const (
	BatteryHeadphones BatteryType = 0x01
	BatteryCase       BatteryType = 0x0a
)

// BatteryTypeFromByte 识别电量类型。
// 实测耳机上报时左右耳电量会用 0x09 标记，与查询用的 0x01 等价。
func BatteryTypeFromByte(b byte) (BatteryType, bool) {
	switch b {
	case 0x01, 0x09:
		return BatteryHeadphones, true
	case 0x0a:
		return BatteryCase, true
	}
	return 0, false
}

func (t BatteryType) String() string {
	switch t {
	case BatteryHeadphones:
		return "headphones"
	case BatteryCase:
		return "case"
	}
	return "unknown"
}

// Codec 当前音频编码
type Codec byte

const (
	CodecUnknown Codec = 0x00
	CodecSBC     Codec = 0x01
	CodecAAC     Codec = 0x02
	CodecLDAC    Codec = 0x10
	CodecAptX    Codec = 0x20
	CodecAptXHD  Codec = 0x21
)

// CodecFromByte 识别编码字节
func CodecFromByte(b byte) (Codec, bool) {
	switch c := Codec(b); c {
	case CodecUnknown, CodecSBC, CodecAAC, CodecLDAC, CodecAptX, CodecAptXHD:
		return c, true
	}
	return 0, false
}

func (c Codec) String() string {
	switch c {
	case CodecUnknown:
		return "unknown"
	case CodecSBC:
		return "SBC"
	case CodecAAC:
		return "AAC"
	case CodecLDAC:
		return "LDAC"
	case CodecAptX:
		return "aptX"
	case CodecAptXHD:
		return "aptX HD"
	}
	return "unknown"
}

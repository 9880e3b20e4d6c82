package mdr

import (
	"encoding/binary"
	"fmt"
)

// 命令体操作码（载荷首字节）
const (
	opEqualizerSet  = 0x58
	opEqualizerGet  = 0x56
	opAncSet        = 0x68
	opAncStatusGet  = 0x66
	opBatteryGet    = 0x22
	opCodecGet      = 0x12
	// 声压扩展走 Command2 命名空间，操作码与 Command1 的均衡器互不冲突。
	// 抓包应答标签为 0x5b/0x59，查询/设置按应答减一的惯例取 0x5a/0x58。
	opSoundPressGet = 0x5a
	opSoundPressSet = 0x58

	// Ambient Sound Control 2 能力标记，AncSet/GetAncStatus 的第二字节
	ascVersion2 = 0x17

	// 声压读数两侧观测到的包装字节，含义未知，按抓包原样发送
	soundPressWrap = 0x03
)

// Command 出站命令意图。编码为命令体后经 BuildCommand 装帧发送。
// 变体集固定；新增命令需同时补充 messageType 归属（Command1/Command2 命名空间）。
type Command interface {
	// body 返回未转义的命令体字节
	body() []byte
	// messageType 返回该命令所属的帧类型命名空间
	messageType() MessageType
}

// Init 会话握手命令（seq 固定从 0 开始）
type Init struct{}

// Ack 空载荷应答帧，序列号按 1-seq (mod 256) 取反
type Ack struct{}

// AncSet 设置降噪/环境声模式
type AncSet struct {
	// Dragging 用户正在拖动环境声滑条（耳机侧会抑制提示音）
	Dragging       bool
	Mode           AncMode
	VoiceFiltering bool
	// AmbientLevel 环境声强度 0–20
	AmbientLevel uint8
}

// GetAncStatus 查询降噪状态
type GetAncStatus struct{}

// ChangeEqualizerPreset 切换均衡器预设
type ChangeEqualizerPreset struct {
	Preset EqualizerPreset
}

// ChangeEqualizerSetting 写入六段均衡器，各段取值 [-10,10]。
// Preset 为写入目标（Manual/Custom1/Custom2），零值按 Manual 处理。
type ChangeEqualizerSetting struct {
	Preset    EqualizerPreset
	Bass      int8
	Band400   int8
	Band1000  int8
	Band2500  int8
	Band6300  int8
	Band16000 int8
}

// GetBatteryStatus 查询电量（耳机或充电盒）
type GetBatteryStatus struct {
	Type BatteryType
}

// GetEqualizerSettings 查询均衡器当前设置
type GetEqualizerSettings struct{}

// GetCodec 查询当前音频编码
type GetCodec struct{}

// SoundPressureMeasure 开关声压测量（Command2 命名空间扩展）
type SoundPressureMeasure struct {
	On bool
}

// GetSoundPressure 查询声压读数（Command2 命名空间扩展）
type GetSoundPressure struct{}

func (Init) body() []byte { return []byte{0x00, 0x00} }
func (Ack) body() []byte  { return nil }

func (c AncSet) body() []byte {
	if c.AmbientLevel > 20 {
		panic(fmt.Sprintf("mdr: ambient sound level %d out of range [0,20]", c.AmbientLevel))
	}
	out := []byte{opAncSet, ascVersion2, boolByte(!c.Dragging)}
	out = append(out, boolByte(c.Mode != AncOff))
	out = append(out, boolByte(c.Mode == AncAmbientSound))
	out = append(out, boolByte(c.VoiceFiltering), c.AmbientLevel)
	return out
}

func (GetAncStatus) body() []byte { return []byte{opAncStatusGet, ascVersion2} }

func (c ChangeEqualizerPreset) body() []byte {
	return []byte{opEqualizerSet, 0x00, byte(c.Preset), 0x00}
}

func (c ChangeEqualizerSetting) body() []byte {
	preset := c.Preset
	if preset == PresetOff {
		preset = PresetManual
	}
	bands := [6]int8{c.Bass, c.Band400, c.Band1000, c.Band2500, c.Band6300, c.Band16000}
	out := []byte{opEqualizerSet, 0x00, byte(preset), byte(len(bands))}
	for _, lvl := range bands {
		if lvl < -10 || lvl > 10 {
			panic(fmt.Sprintf("mdr: equalizer band level %d out of range [-10,10]", lvl))
		}
		// 有符号电平整体平移 +10 映射到无符号字节
		out = append(out, byte(lvl+10))
	}
	return out
}

func (c GetBatteryStatus) body() []byte { return []byte{opBatteryGet, byte(c.Type)} }
func (GetEqualizerSettings) body() []byte {
	return []byte{opEqualizerGet, 0x00}
}
func (GetCodec) body() []byte { return []byte{opCodecGet, 0x02} }

func (c SoundPressureMeasure) body() []byte {
	return []byte{opSoundPressSet, soundPressWrap, boolByte(c.On)}
}
func (GetSoundPressure) body() []byte { return []byte{opSoundPressGet, soundPressWrap} }

func (Ack) messageType() MessageType                    { return MessageTypeAck }
func (Init) messageType() MessageType                   { return MessageTypeCommand1 }
func (AncSet) messageType() MessageType                 { return MessageTypeCommand1 }
func (GetAncStatus) messageType() MessageType           { return MessageTypeCommand1 }
func (ChangeEqualizerPreset) messageType() MessageType  { return MessageTypeCommand1 }
func (ChangeEqualizerSetting) messageType() MessageType { return MessageTypeCommand1 }
func (GetBatteryStatus) messageType() MessageType       { return MessageTypeCommand1 }
func (GetEqualizerSettings) messageType() MessageType   { return MessageTypeCommand1 }
func (GetCodec) messageType() MessageType               { return MessageTypeCommand1 }
func (SoundPressureMeasure) messageType() MessageType   { return MessageTypeCommand2 }
func (GetSoundPressure) messageType() MessageType       { return MessageTypeCommand2 }

// BuildCommand 将命令装配为一帧线上字节：
// header | 转义(type seq lenBE4 body checksum) | trailer。
// Ack 的序列号取 1-seq (mod 256)，其余命令原样携带当前 seq。
// 参数越界（环境声等级、均衡器电平）属于调用方契约违约，直接 panic。
func BuildCommand(cmd Command, seq uint8) []byte {
	body := cmd.body()

	core := make([]byte, 0, len(body)+8)
	core = append(core, byte(cmd.messageType()))
	if _, isAck := cmd.(Ack); isAck {
		core = append(core, 1-seq)
	} else {
		core = append(core, seq)
	}
	core = binary.BigEndian.AppendUint32(core, uint32(len(body)))
	core = append(core, body...)
	core = append(core, Checksum(core))

	out := make([]byte, 0, len(core)+2)
	out = append(out, MessageHeader)
	for _, b := range core {
		out = appendEscaped(out, b)
	}
	return append(out, MessageTrailer)
}

// appendEscaped 追加单字节，定界字符写为 escape + 掩码后的原值
func appendEscaped(dst []byte, b byte) []byte {
	switch b {
	case MessageHeader, MessageTrailer, EscapeByte:
		return append(dst, EscapeByte, b&EscapeMask)
	}
	return append(dst, b)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

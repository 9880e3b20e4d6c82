package mdr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNoMessageHeader 帧首字节不是 header 定界符
var ErrNoMessageHeader = errors.New("mdr: bytes do not start with the message header")

// ChecksumError 帧携带的校验和与重新计算值不一致
type ChecksumError struct {
	Expected byte // 按 type..payload 重新计算出的值
	Got      byte // 帧里携带的值
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("mdr: checksum mismatch: expected 0x%02x, got 0x%02x", e.Expected, e.Got)
}

// Message 一个结构完整帧的视图。
// Payload 借用解析器内部缓冲，仅在下一次 Parse 调用前有效；
// 需要跨调用保留时由使用方自行拷贝。
type Message struct {
	Kind      MessageType
	KindKnown bool // false 时 Kind 无效，原始类型字节见 RawKind
	RawKind   byte
	SeqNum    byte
	Payload   []byte
	// ChecksumErr 为 nil 表示校验通过；校验失败不影响帧的结构完整性，
	// 由调用方决定丢弃还是应答
	ChecksumErr *ChecksumError
}

// ParseStatus Parse 的结果类别
type ParseStatus int

const (
	// StatusReady 从输入起始拼出了一个完整帧
	StatusReady ParseStatus = iota
	// StatusIncomplete 输入耗尽，帧未完整
	StatusIncomplete
	// StatusError 结构错误（缺少 header），当前帧作废
	StatusError
)

// ParseResult Parse 的返回值。Consumed 为本次调用消耗的输入字节数，
// 多帧粘连时调用方应对剩余字节再次调用 Parse。
type ParseResult struct {
	Status   ParseStatus
	Msg      *Message // 仅 StatusReady
	Consumed int      // StatusReady / StatusError
	// BytesNeeded 距离帧完整还差的字节数；长度字段尚未读全时为 -1。
	// 仅 StatusIncomplete 有效。
	BytesNeeded int
	Err         error // 仅 StatusError
}

// 帧内固定开销：header(1) + type(1) + seq(1) + lenBE(4) 在载荷前，
// checksum(1) + trailer(1) 在载荷后
const (
	framePrefixLen = 7
	frameSuffixLen = 2
)

// FrameParser 面向字节流的帧解析状态机。
// 状态由缓冲长度与待转义标记隐式表达：空缓冲等待 header，1–2 读 type/seq，
// 3–6 累积 4 字节大端长度，之后收满 prefix+len+suffix 即为一帧。
// 实例在会话期内长期存活；完整帧在下一次 Parse 前保留在内部缓冲中。
type FrameParser struct {
	buf        []byte
	msgLen     int // 声明的载荷长度；-1 表示长度字段未读全
	needEscape bool
}

// NewFrameParser 创建流式帧解析器
func NewFrameParser() *FrameParser {
	return &FrameParser{msgLen: -1}
}

// Parse 消费一段任意长度的输入（可以小到 1 字节）。
// 从输入起始拼出完整帧即返回 Ready 及消耗字节数；输入耗尽返回 Incomplete；
// header 校验失败返回 Error（该字节已消耗，缓冲已清空，调用方可继续重同步）。
func (p *FrameParser) Parse(chunk []byte) ParseResult {
	if p.done() {
		// 上一帧已交付，开始累积下一帧
		p.reset()
	}
	for i, b := range chunk {
		if err := p.parseByte(b); err != nil {
			p.reset()
			return ParseResult{Status: StatusError, Err: err, Consumed: i + 1}
		}
		if p.done() {
			return ParseResult{Status: StatusReady, Msg: p.message(), Consumed: i + 1}
		}
	}
	return ParseResult{Status: StatusIncomplete, BytesNeeded: p.bytesNeeded()}
}

func (p *FrameParser) reset() {
	p.buf = p.buf[:0]
	p.msgLen = -1
	p.needEscape = false
}

// bytesNeeded 返回距离整帧还差的字节数，长度未知时为 -1
func (p *FrameParser) bytesNeeded() int {
	if p.msgLen < 0 {
		return -1
	}
	return framePrefixLen + p.msgLen + frameSuffixLen - len(p.buf)
}

func (p *FrameParser) done() bool {
	return p.msgLen >= 0 && p.bytesNeeded() == 0
}

func (p *FrameParser) parseByte(b byte) error {
	if p.needEscape {
		b |= ^byte(EscapeMask)
		p.needEscape = false
	} else if b == EscapeByte {
		p.needEscape = true
		return nil
	}
	if len(p.buf) == 0 && b != MessageHeader {
		return ErrNoMessageHeader
	}
	p.buf = append(p.buf, b)
	if len(p.buf) == framePrefixLen {
		// 长度字段读全
		p.msgLen = int(binary.BigEndian.Uint32(p.buf[3:7]))
	}
	return nil
}

// message 构造完整帧的视图；校验和与类型有效性作为结果字段给出，不作失败处理
func (p *FrameParser) message() *Message {
	n := len(p.buf)
	msg := &Message{
		RawKind: p.buf[1],
		SeqNum:  p.buf[2],
		Payload: p.buf[framePrefixLen : n-frameSuffixLen],
	}
	msg.Kind, msg.KindKnown = MessageTypeFromByte(p.buf[1])
	got := p.buf[n-frameSuffixLen]
	if want := Checksum(p.buf[1 : n-frameSuffixLen]); want != got {
		msg.ChecksumErr = &ChecksumError{Expected: want, Got: got}
	}
	return msg
}

// Package session 驱动一条与耳机的协议会话：握手、事件循环、
// 序列号与应答门控，以及设备状态缓存。
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/lateware/xm5ctl/internal/config"
	"github.com/lateware/xm5ctl/internal/metrics"
	"github.com/lateware/xm5ctl/internal/protocol/mdr"
)

var (
	// ErrHandshakeFailed 握手重试耗尽，需要重新连接
	ErrHandshakeFailed = errors.New("session: init handshake failed after retries")
	// ErrMalformedFrame 事件循环中出现结构性解析错误，连接视为不可恢复
	ErrMalformedFrame = errors.New("session: malformed frame from headset, reconnect required")
)

// Driver 会话协议驱动。独占字节流句柄，在一个 goroutine 内运行
// Run；外界通过 Submit 投递命令、通过 Payloads 消费解码结果。
//
// 协议要求同一时刻至多一条未应答的出站命令：序列号是会话级共享
// 计数器，只会被收到的 Ack 帧更新，没有并发复用的余地。
type Driver struct {
	stream io.ReadWriter
	cfg    cfgpkg.SessionConfig
	log    *zap.Logger
	m      *metrics.AppMetrics

	parser   *mdr.FrameParser
	commands chan mdr.Command
	payloads chan mdr.Payload

	// 事件循环本地状态，不跨 goroutine 共享
	seq        uint8
	waitingAck bool
}

// NewDriver 创建会话驱动。stream 的关闭由调用方负责，关闭它也是
// 解除阻塞中读取的唯一手段。
func NewDriver(stream io.ReadWriter, cfg cfgpkg.SessionConfig, log *zap.Logger, m *metrics.AppMetrics) *Driver {
	if cfg.ReadBufSize <= 0 {
		cfg.ReadBufSize = 1024
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 1500 * time.Millisecond
	}
	return &Driver{
		stream:   stream,
		cfg:      cfg,
		log:      log,
		m:        m,
		parser:   mdr.NewFrameParser(),
		commands: make(chan mdr.Command, 64),
		payloads: make(chan mdr.Payload, 64),
	}
}

// Payloads 返回解码后载荷的消费通道
func (d *Driver) Payloads() <-chan mdr.Payload { return d.payloads }

// Submit 投递一条出站命令。命令按序排队，前一条未收到 Ack 前不会上线。
func (d *Driver) Submit(ctx context.Context, cmd mdr.Command) error {
	select {
	case d.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type readResult struct {
	data []byte
	err  error
}

// Run 执行握手并进入事件循环，阻塞到 ctx 取消（返回 nil）或致命错误。
// 返回即代表连接结束；未发送的排队命令直接丢弃。
func (d *Driver) Run(ctx context.Context) error {
	readC := make(chan readResult, 8)
	done := make(chan struct{})
	defer close(done)
	go d.readLoop(readC, done)

	if err := d.handshake(ctx, readC); err != nil {
		return err
	}

	d.m.ConnectedGauge.Set(1)
	defer d.m.ConnectedGauge.Set(0)
	return d.eventLoop(ctx, readC)
}

// readLoop 独占流的读端，把原始块搬运到事件循环。
// 流被关闭（或出错）后结束；Run 退出后 done 关闭，
// 即便 readC 缓冲已满也不会卡在投递上。
func (d *Driver) readLoop(readC chan<- readResult, done <-chan struct{}) {
	defer close(readC)
	for {
		buf := make([]byte, d.cfg.ReadBufSize)
		n, err := d.stream.Read(buf)
		if n > 0 {
			select {
			case readC <- readResult{data: buf[:n]}:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case readC <- readResult{err: err}:
			case <-done:
			}
			return
		}
	}
}

// handshake 发送 Init（seq 0）并等待耳机的任意可读字节；
// 超时则重发，预算耗尽视为连接失败。ctx 随时可中止。
func (d *Driver) handshake(ctx context.Context, readC <-chan readResult) error {
	initFrame := mdr.BuildCommand(mdr.Init{}, 0)
	if err := d.write(initFrame); err != nil {
		return fmt.Errorf("send init: %w", err)
	}
	// Init 也要等 Ack
	d.waitingAck = true

	tries := d.cfg.HandshakeRetries
	timer := time.NewTimer(d.cfg.HandshakeTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case res, ok := <-readC:
			if !ok || res.err != nil {
				return fmt.Errorf("handshake read: %w", readErr(res.err))
			}
			// 耳机醒了，首块字节直接进常规消费路径
			d.m.BytesReceived.Add(float64(len(res.data)))
			return d.consume(ctx, res.data)

		case <-timer.C:
			if tries == 0 {
				return ErrHandshakeFailed
			}
			tries--
			d.m.HandshakeRetries.Inc()
			d.log.Debug("init timed out, retrying", zap.Int("tries_left", tries))
			if err := d.write(initFrame); err != nil {
				return fmt.Errorf("resend init: %w", err)
			}
			timer.Reset(d.cfg.HandshakeTimeout)
		}
	}
}

func (d *Driver) eventLoop(ctx context.Context, readC <-chan readResult) error {
	for {
		// 未应答期间挂起命令通道：nil 通道永不就绪，命令留在队列里
		cmdC := d.commands
		if d.waitingAck {
			cmdC = nil
		}

		select {
		case <-ctx.Done():
			d.log.Debug("event loop stopped")
			return nil

		case res, ok := <-readC:
			if !ok || res.err != nil {
				return fmt.Errorf("session read: %w", readErr(res.err))
			}
			d.m.BytesReceived.Add(float64(len(res.data)))
			if err := d.consume(ctx, res.data); err != nil {
				return err
			}

		case cmd := <-cmdC:
			raw := mdr.BuildCommand(cmd, d.seq)
			d.log.Debug("sending command",
				zap.String("command", fmt.Sprintf("%T", cmd)),
				zap.Uint8("seq", d.seq))
			if err := d.write(raw); err != nil {
				return fmt.Errorf("send command: %w", err)
			}
			d.m.CommandsSent.WithLabelValues(fmt.Sprintf("%T", cmd)).Inc()
			d.waitingAck = true
		}
	}
}

// consume 在一个输入块上循环解析，处理其中全部完整帧。
// 结构性解析错误是致命的：耳机端发来了无法重同步的字节流。
func (d *Driver) consume(ctx context.Context, chunk []byte) error {
	for offset := 0; offset < len(chunk); {
		res := d.parser.Parse(chunk[offset:])
		switch res.Status {
		case mdr.StatusReady:
			if err := d.handleMessage(ctx, res.Msg); err != nil {
				return err
			}
			offset += res.Consumed

		case mdr.StatusIncomplete:
			return nil

		case mdr.StatusError:
			d.log.Warn("frame parser error",
				zap.Error(res.Err), zap.Int("consumed", res.Consumed))
			return fmt.Errorf("%w: %w", ErrMalformedFrame, res.Err)
		}
	}
	return nil
}

// handleMessage 处理一个结构完整的帧。校验和错误与未知类型只记日志跳过，
// 会话继续；Ack 更新序列号并解除门控；Command 帧先应答再解码转发。
func (d *Driver) handleMessage(ctx context.Context, msg *mdr.Message) error {
	if !msg.KindKnown {
		d.m.FramesTotal.WithLabelValues("unknown_type").Inc()
		d.log.Warn("unknown message type, ignoring", zap.Uint8("type", msg.RawKind))
		return nil
	}
	if msg.ChecksumErr != nil {
		d.m.FramesTotal.WithLabelValues("checksum_error").Inc()
		d.log.Warn("bad checksum, ignoring frame", zap.Error(msg.ChecksumErr))
		return nil
	}
	d.m.FramesTotal.WithLabelValues("ok").Inc()

	switch msg.Kind {
	case mdr.MessageTypeAck:
		d.seq = msg.SeqNum
		d.waitingAck = false
		d.m.AcksReceived.Inc()

	case mdr.MessageTypeCommand1, mdr.MessageTypeCommand2:
		payload, perr := mdr.ParsePayload(msg.Payload, msg.Kind)

		// 不论载荷是否可解，收到的 Command 帧都必须应答
		if err := d.write(mdr.BuildCommand(mdr.Ack{}, msg.SeqNum)); err != nil {
			return fmt.Errorf("send ack: %w", err)
		}

		if perr != nil {
			d.m.PayloadTotal.WithLabelValues("unknown", "error").Inc()
			d.log.Warn("bad payload, ignoring", zap.Error(perr))
			return nil
		}
		d.m.PayloadTotal.WithLabelValues(payload.PayloadType().String(), "ok").Inc()

		select {
		case d.payloads <- payload:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func (d *Driver) write(b []byte) error {
	_, err := d.stream.Write(b)
	return err
}

func readErr(err error) error {
	if err == nil {
		return io.ErrUnexpectedEOF
	}
	return err
}

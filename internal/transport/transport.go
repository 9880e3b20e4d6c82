// Package transport 负责拿到一条到耳机的双工字节流。
// 会话驱动对流的来源不感知：蓝牙 RFCOMM、已绑定的 tty 或开发用 TCP 桥接均可。
// 配对与设备发现不在职责内，RFCOMM 模式只操作已配对的地址。
package transport

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/lateware/xm5ctl/internal/config"
)

// Dial 按配置打开字节流连接
func Dial(cfg cfgpkg.TransportConfig, log *zap.Logger) (io.ReadWriteCloser, error) {
	switch cfg.Kind {
	case "tcp":
		timeout := cfg.DialTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		conn, err := net.DialTimeout("tcp", cfg.Addr, timeout)
		if err != nil {
			return nil, fmt.Errorf("dial tcp bridge %s: %w", cfg.Addr, err)
		}
		return conn, nil

	case "tty":
		f, err := os.OpenFile(cfg.Addr, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("open tty %s: %w", cfg.Addr, err)
		}
		return f, nil

	case "rfcomm":
		if cfg.Bluez {
			if err := ensureDeviceConnected(cfg.Addr, log); err != nil {
				return nil, err
			}
		}
		return dialRFCOMM(cfg.Addr, cfg.Channel)
	}
	return nil, fmt.Errorf("transport: unknown kind %q", cfg.Kind)
}

// parseMAC 解析 "AA:BB:CC:DD:EE:FF" 为 bdaddr 字节序（反转）的 6 字节数组
func parseMAC(addr string) ([6]byte, error) {
	var out [6]byte
	hw, err := net.ParseMAC(addr)
	if err != nil || len(hw) != 6 {
		return out, fmt.Errorf("transport: invalid bluetooth address %q", addr)
	}
	for i := 0; i < 6; i++ {
		out[i] = hw[5-i]
	}
	return out, nil
}

//go:build linux

package transport

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// dialRFCOMM 直接打开 AF_BLUETOOTH/RFCOMM socket。
// 要求设备已配对且基带已连接（见 bluez.go），失败时内核会返回
// EHOSTDOWN/ECONNREFUSED 一类错误。
func dialRFCOMM(addr string, channel uint8) (io.ReadWriteCloser, error) {
	bdaddr, err := parseMAC(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("rfcomm socket: %w", err)
	}
	sa := &unix.SockaddrRFCOMM{Addr: bdaddr, Channel: channel}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rfcomm connect %s ch %d: %w", addr, channel, err)
	}
	return os.NewFile(uintptr(fd), "rfcomm:"+addr), nil
}

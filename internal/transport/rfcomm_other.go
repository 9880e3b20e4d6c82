//go:build !linux

package transport

import (
	"errors"
	"io"
)

func dialRFCOMM(addr string, channel uint8) (io.ReadWriteCloser, error) {
	return nil, errors.New("transport: rfcomm is only supported on linux; use kind tcp or tty")
}

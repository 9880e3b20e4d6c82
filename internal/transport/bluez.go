package transport

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	busName      = "org.bluez"
	adapterPath  = "/org/bluez/hci0"
	adapterIface = "org.bluez.Adapter1"
	deviceIface  = "org.bluez.Device1"
	propsIface   = "org.freedesktop.DBus.Properties"
)

// deviceObjectPath 把 "AA:BB:CC:DD:EE:FF" 映射为 BlueZ 设备对象路径
func deviceObjectPath(addr string) dbus.ObjectPath {
	escaped := strings.ReplaceAll(strings.ToUpper(addr), ":", "_")
	return dbus.ObjectPath(adapterPath + "/dev_" + escaped)
}

// ensureDeviceConnected 在打开 RFCOMM socket 前经 BlueZ 确认前置条件：
// 适配器上电、目标设备已配对、基带连接建立。只操作已配对设备，
// 配对/扫描流程不在范围内。
func ensureDeviceConnected(addr string, log *zap.Logger) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect to system bus: %w", err)
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return fmt.Errorf("list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == busName {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("org.bluez not found on system bus — is bluetooth.service running?")
	}

	powered, err := getBool(conn, adapterPath, adapterIface, "Powered")
	if err != nil {
		return fmt.Errorf("read adapter power state: %w", err)
	}
	if !powered {
		log.Info("powering on bluetooth adapter")
		if err := setProp(conn, adapterPath, adapterIface, "Powered", true); err != nil {
			return fmt.Errorf("power on adapter: %w", err)
		}
	}

	devPath := deviceObjectPath(addr)
	paired, err := getBool(conn, devPath, deviceIface, "Paired")
	if err != nil {
		return fmt.Errorf("read paired state of %s: %w", addr, err)
	}
	if !paired {
		return fmt.Errorf("device %s is not paired; pair it first", addr)
	}

	connected, err := getBool(conn, devPath, deviceIface, "Connected")
	if err != nil {
		return fmt.Errorf("read connected state of %s: %w", addr, err)
	}
	if !connected {
		log.Info("connecting device via bluez", zap.String("addr", addr))
		// Device1.Connect 同步阻塞到连接建立或失败
		if err := conn.Object(busName, devPath).Call(deviceIface+".Connect", 0).Err; err != nil {
			return fmt.Errorf("bluez connect %s: %w", addr, err)
		}
	}
	return nil
}

func getBool(conn *dbus.Conn, path dbus.ObjectPath, iface, prop string) (bool, error) {
	var v dbus.Variant
	err := conn.Object(busName, path).Call(propsIface+".Get", 0, iface, prop).Store(&v)
	if err != nil {
		return false, err
	}
	val, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property %s is not bool", prop)
	}
	return val, nil
}

func setProp(conn *dbus.Conn, path dbus.ObjectPath, iface, prop string, val interface{}) error {
	return conn.Object(busName, path).Call(propsIface+".Set", 0, iface, prop, dbus.MakeVariant(val)).Err
}

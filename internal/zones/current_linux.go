//go:build linux

package zones

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	timedateService   = "org.freedesktop.timedate1"
	timedatePath      = "/org/freedesktop/timedate1"
	timedateInterface = "org.freedesktop.timedate1"
)

// systemZone asks systemd-timedated for the configured time zone.
var systemZone = func(ctx context.Context) (string, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return "", err
	}
	defer conn.Close()

	zone, err := dbusProperty[string](ctx, conn, timedateService, timedatePath, timedateInterface, "Timezone")
	if err != nil {
		return "", fmt.Errorf("could not get time zone: %w", err)
	}
	return zone, nil
}

func dbusProperty[T any](ctx context.Context, conn *dbus.Conn, dest, path, iface, property string) (T, error) {
	var v T
	var p dbus.Variant
	err := conn.Object(dest, dbus.ObjectPath(path)).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, iface, property).
		Store(&p)
	if err != nil {
		return v, err
	}
	v, ok := p.Value().(T)
	if !ok {
		return v, fmt.Errorf("invalid type for %T", p.Value())
	}
	return v, nil
}

//go:build !linux

package zones

import (
	"context"
	"errors"
)

var systemZone = func(context.Context) (string, error) {
	return "", errors.New("no system time zone service")
}

package zones

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// localtimePath is the host's local time zone file.
var localtimePath = "/etc/localtime"

var errNotSet = errors.New("not set")

// Current returns the host's time zone. It consults, in order, the TZ
// environment variable, the system time zone service and the target of
// /etc/localtime, and returns "UTC" when none of them names a known zone.
// An error is only returned when ctx is done.
func (d *Directory) Current(ctx context.Context) (string, error) {
	sources := []struct {
		name   string
		lookup func(context.Context) (string, error)
	}{
		{"TZ", d.fromEnv},
		{"system", systemZone},
		{"localtime", d.fromLocaltime},
	}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name, err := src.lookup(ctx)
		if err != nil {
			d.logger.Debug("current zone source failed", "source", src.name, "error", err)
			continue
		}
		zone, err := d.Locate(name)
		if err != nil {
			d.logger.Debug("current zone not found", "source", src.name, "zone", name)
			continue
		}
		return zone, nil
	}
	return "UTC", nil
}

func (d *Directory) fromEnv(context.Context) (string, error) {
	v, ok := os.LookupEnv("TZ")
	if !ok || v == "" {
		return "", errNotSet
	}
	return d.zoneName(strings.TrimPrefix(v, ":")), nil
}

func (d *Directory) fromLocaltime(context.Context) (string, error) {
	dest, err := os.Readlink(localtimePath)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(filepath.Dir(localtimePath), dest)
	}
	return d.zoneName(dest), nil
}

// zoneName turns a path to a zone file into a zone name. Names that are
// not absolute paths are returned unchanged.
func (d *Directory) zoneName(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	if d.root != "" {
		if rel, err := filepath.Rel(d.root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	slashed := filepath.ToSlash(path)
	if i := strings.LastIndex(slashed, "zoneinfo/"); i >= 0 {
		return slashed[i+len("zoneinfo/"):]
	}
	return path
}

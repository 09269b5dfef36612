// Package zones maps user supplied zone names to canonical tz database
// names. It reads the zoneinfo tree for the list of zones and their links
// and layers configured aliases on top.
package zones

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/atlet99/tzresolve/internal/tz"
)

const (
	tzifMagic = "TZif"

	// maxLinkDepth bounds alias and link chains.
	maxLinkDepth = 8
)

// DefaultSearchPath lists the directories probed for a zoneinfo tree when
// none is configured, after $ZONEINFO.
var DefaultSearchPath = []string{
	"/usr/share/zoneinfo",
	"/usr/share/lib/zoneinfo",
	"/usr/lib/locale/TZ",
	"/etc/zoneinfo",
}

// Directory is a tz.Locator over a zoneinfo tree. It is safe for concurrent
// use; Reload and SetAliases may be called while lookups are in progress.
type Directory struct {
	root   string
	has    func(string) bool
	logger *slog.Logger

	mu      sync.RWMutex
	zones   []string
	known   map[string]bool
	folded  map[string]string
	links   map[string]string
	aliases map[string]string
}

// Config configures a Directory.
type Config struct {
	// Root is the zoneinfo directory. Empty means search $ZONEINFO and
	// DefaultSearchPath. A missing tree is not an error; lookups then
	// rely on Has alone.
	Root string

	// Aliases maps additional names to zone names.
	Aliases map[string]string

	// Has reports whether the calendar backend can load a zone. It is
	// consulted for names that are not in the tree.
	Has func(string) bool

	Logger *slog.Logger
}

// New creates a Directory and performs the initial scan.
func New(cfg Config) (*Directory, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	has := cfg.Has
	if has == nil {
		has = func(string) bool { return false }
	}
	root := cfg.Root
	if root == "" {
		root = findRoot()
	}
	d := &Directory{
		root:    root,
		has:     has,
		logger:  logger,
		aliases: copyMap(cfg.Aliases),
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

func findRoot() string {
	candidates := DefaultSearchPath
	if env := os.Getenv("ZONEINFO"); env != "" {
		candidates = append([]string{env}, candidates...)
	}
	for _, dir := range candidates {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir
		}
	}
	return ""
}

// Root returns the zoneinfo directory in use, or "" if there is none.
func (d *Directory) Root() string {
	return d.root
}

// Reload rescans the zoneinfo tree.
func (d *Directory) Reload() error {
	zones, links, err := scan(d.root)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(zones))
	folded := make(map[string]string, len(zones)+len(links))
	for _, z := range zones {
		known[z] = true
		folded[fold(z)] = z
	}
	for l := range links {
		if _, ok := folded[fold(l)]; !ok {
			folded[fold(l)] = l
		}
	}

	d.mu.Lock()
	d.zones, d.known, d.folded, d.links = zones, known, folded, links
	d.mu.Unlock()

	d.logger.Info("Loaded zoneinfo directory",
		"root", d.root,
		"zones", len(zones),
		"links", len(links),
	)
	return nil
}

// SetAliases replaces the configured aliases.
func (d *Directory) SetAliases(aliases map[string]string) {
	d.mu.Lock()
	d.aliases = copyMap(aliases)
	d.mu.Unlock()
}

// Zones returns the canonical zone names of the tree in sorted order.
// Names that are links are not included.
func (d *Directory) Zones() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.zones...)
}

// Links returns every known alias and link with its target. Configured
// aliases take precedence over links from the tree.
func (d *Directory) Links() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.links)+len(d.aliases))
	for k, v := range d.links {
		out[k] = v
	}
	for k, v := range d.aliases {
		out[k] = v
	}
	return out
}

// Locate implements tz.Locator. Aliases and links are followed, and a name
// that matches a zone except for case resolves to that zone.
func (d *Directory) Locate(name string) (string, error) {
	if name == "" {
		return "", &tz.ZoneError{Name: name}
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	cur := name
	for i := 0; i < maxLinkDepth; i++ {
		if target, ok := d.aliases[cur]; ok {
			cur = target
			continue
		}
		if target, ok := d.links[cur]; ok {
			cur = target
			continue
		}
		if d.known[cur] {
			return cur, nil
		}
		if canonical, ok := d.folded[fold(cur)]; ok && canonical != cur {
			cur = canonical
			continue
		}
		if !excluded(cur) && d.has(cur) {
			return cur, nil
		}
		return "", &tz.ZoneError{Name: name}
	}
	return "", &tz.ZoneError{Name: name, Err: errors.New("alias chain too long")}
}

// excluded reports whether name is part of a zoneinfo tree without being
// a zone: the posix/ and right/ variants, which count leap seconds, and
// the posixrules and localtime files.
func excluded(name string) bool {
	name = strings.ToLower(name)
	switch name {
	case "posix", "right", "posixrules", "localtime":
		return true
	}
	return strings.HasPrefix(name, "posix/") || strings.HasPrefix(name, "right/")
}

func fold(s string) string {
	// Caser values are not safe for concurrent use.
	return cases.Fold().String(s)
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// scan walks root and returns the zone files and links it holds.
func scan(root string) ([]string, map[string]string, error) {
	links := make(map[string]string)
	if root == "" {
		return nil, links, nil
	}

	var zones []string
	err := filepath.WalkDir(root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable entries are skipped.
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if excluded(rel) {
			if e.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if e.IsDir() {
			return nil
		}
		if e.Type()&fs.ModeSymlink != 0 {
			if target, ok := linkTarget(root, path); ok && target != rel {
				links[rel] = target
			}
			return nil
		}
		if isTZif(path) {
			zones = append(zones, rel)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, links, nil
		}
		return nil, nil, err
	}

	zi, err := os.Open(filepath.Join(root, "tzdata.zi"))
	if err == nil {
		defer zi.Close()
		if err := parseLinks(zi, links); err != nil {
			return nil, nil, err
		}
	}

	canonical := zones[:0]
	for _, z := range zones {
		if _, ok := links[z]; !ok {
			canonical = append(canonical, z)
		}
	}
	sort.Strings(canonical)
	return canonical, links, nil
}

// linkTarget returns the zone name a symlink inside root points to.
func linkTarget(root, path string) (string, bool) {
	dest, err := os.Readlink(path)
	if err != nil {
		return "", false
	}
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(filepath.Dir(path), dest)
	}
	rel, err := filepath.Rel(root, dest)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if !isTZif(dest) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func isTZif(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	magic := make([]byte, len(tzifMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return false
	}
	return bytes.Equal(magic, []byte(tzifMagic))
}

// parseLinks reads the link lines of a tzdata.zi file. A link line has the
// form "L TARGET LINK".
func parseLinks(r io.Reader, links map[string]string) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 3 && fields[0] == "L" {
			links[fields[2]] = fields[1]
		}
	}
	return sc.Err()
}

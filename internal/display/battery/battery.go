// Package battery reads the charge level shown on the face.
package battery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const DefaultSysfsRoot = "/sys/class/power_supply"

var ErrNoBattery = errors.New("battery: no battery found")

// Source reports charge in percent, 0..100.
type Source interface {
	Level() (int, error)
}

// Static always reports the same level.
type Static int

func (s Static) Level() (int, error) {
	return clamp(int(s)), nil
}

// Sysfs reads the first power supply under Root that exposes a capacity file.
type Sysfs struct {
	Root string
}

func (s Sysfs) Level() (int, error) {
	root := s.Root
	if root == "" {
		root = DefaultSysfsRoot
	}
	matches, err := filepath.Glob(filepath.Join(root, "*", "capacity"))
	if err != nil {
		return 0, fmt.Errorf("battery: %w", err)
	}
	sort.Strings(matches)
	for _, path := range matches {
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(string(b)))
		if err != nil {
			return 0, fmt.Errorf("battery: parse %s: %w", path, err)
		}
		return clamp(n), nil
	}
	return 0, fmt.Errorf("%w under %s", ErrNoBattery, root)
}

// New picks a source by name: "static" or "sysfs".
func New(kind string, level int, root string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "static":
		return Static(level), nil
	case "sysfs":
		return Sysfs{Root: root}, nil
	default:
		return nil, fmt.Errorf("battery: unknown source %q", kind)
	}
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

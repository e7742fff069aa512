package companion

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/watchsync/internal/icon"
	"github.com/danmuck/watchsync/internal/weather"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

var ErrInvalidFeed = errors.New("companion: invalid feed")

// Feed is the weather file the companion serves, e.g.
//
//	icon: rain
//	temperature: 58°F
//	location: St Pebblesburg
//
// icon accepts a condition name or its numeric code.
type Feed struct {
	Icon        string `yaml:"icon"`
	Temperature string `yaml:"temperature"`
	Location    string `yaml:"location"`
}

func LoadFeed(path string) (weather.Conditions, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return weather.Conditions{}, fmt.Errorf("companion: read feed %s: %w", path, err)
	}
	return ParseFeed(b)
}

// ParseFeed decodes YAML and normalizes text fields to NFC so that equal
// strings produce byte-identical dictionary values.
func ParseFeed(b []byte) (weather.Conditions, error) {
	var f Feed
	if err := yaml.Unmarshal(b, &f); err != nil {
		return weather.Conditions{}, fmt.Errorf("%w: %w", ErrInvalidFeed, err)
	}
	return f.Conditions(icon.DefaultTable())
}

func (f Feed) Conditions(table icon.Table) (weather.Conditions, error) {
	code, err := parseIcon(table, f.Icon)
	if err != nil {
		return weather.Conditions{}, err
	}
	return weather.Conditions{
		Icon:        code,
		Temperature: normalize(f.Temperature),
		Location:    normalize(f.Location),
	}, nil
}

func parseIcon(table icon.Table, raw string) (icon.Code, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0, fmt.Errorf("%w: icon is required", ErrInvalidFeed)
	}
	for code := icon.Code(0); int(code) < table.Len(); code++ {
		r, err := table.Resolve(code)
		if err != nil {
			break
		}
		if r.Name == raw || fmt.Sprint(uint32(code)) == raw {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w: %w: %q", ErrInvalidFeed, icon.ErrUnknownCode, raw)
}

func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "config":
		return configTemplate, nil
	case "feed":
		return feedTemplate, nil
	default:
		return "", fmt.Errorf("unknown template kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const configTemplate = `[sync]
capacity = 64
refresh_key = 3
pending_policy = "reject"
request_timeout = "30s"
refresh_interval = "30m"

[seed]
icon = 1
temperature = "...°F"
location = "St Pebblesburg"

[clock]
zone_offset = "3h"
zone_label = "BH"

[battery]
source = "static"
level = 100

[companion]
url = "ws://127.0.0.1:7450/sync"
listen = "127.0.0.1:7450"
feed_path = "weather.yaml"
debounce = "200ms"
`

const feedTemplate = `icon: cloud
temperature: 58°F
location: St Pebblesburg
`

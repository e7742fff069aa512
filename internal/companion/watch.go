package companion

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/danmuck/watchsync/internal/weather"
	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 200 * time.Millisecond

// Watch reloads the feed at path after it settles and hands it to onChange.
// The parent directory is watched so editors that replace the file by rename
// are still seen. It blocks until ctx ends.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func(weather.Conditions)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("companion: watch %s: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("companion: watch %s: %w", path, err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("companion: watch %s: %w", path, err)
	}

	log := loggerFor("watch").With().Str("path", target).Logger()
	log.Info().Dur("debounce", debounce).Msg("watching feed")

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			log.Debug().Str("op", event.Op.String()).Msg("feed event")
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		case <-timer.C:
			c, err := LoadFeed(target)
			if err != nil {
				log.Warn().Err(err).Msg("feed reload failed")
				continue
			}
			log.Info().Str("icon", fmt.Sprint(c.Icon)).Str("temperature", c.Temperature).Msg("feed reloaded")
			onChange(c)
		}
	}
}

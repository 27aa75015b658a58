/*
 * Copyright 2025 the NannyAI Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/elabbarw/nannyai/pkg/logger"
)

// Watch reloads the config file whenever it changes on disk and invokes
// onChange with the fresh config. It watches the parent directory rather
// than the file itself so editors that replace the file atomically are
// still observed. Watch returns once the watcher is installed; reloads
// happen on a background goroutine until ctx is canceled.
func Watch(ctx context.Context, path string, log logger.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()

		return fmt.Errorf("failed to watch config directory %q: %w", dir, err)
	}

	target := filepath.Clean(path)

	go func() {
		defer func() {
			_ = watcher.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if filepath.Clean(event.Name) != target {
					continue
				}

				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				cfg, err := Load(path)
				if err != nil {
					log.Warn().Err(err).Str("path", path).Msg("Ignoring config change that failed to load")
					continue
				}

				log.Info().Str("path", path).Msg("Config file changed, reloading")
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				log.Warn().Err(err).Msg("Config watcher error")
			}
		}
	}()

	return nil
}

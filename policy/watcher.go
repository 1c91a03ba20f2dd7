package policy

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// LoadFile creates an engine from the policy at path.
func LoadFile(ctx context.Context, path string) (*Engine, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Watch reloads the engine whenever the file at path is written, until ctx is done.
// The directory is watched so editors that replace the file are picked up too.
func Watch(ctx context.Context, engine *Engine, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch policy: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				content, err := os.ReadFile(path)
				if err != nil {
					log.Printf("WARN: failed to read policy %s: %v", path, err)
					continue
				}
				if err := engine.Reload(ctx, string(content)); err != nil {
					log.Printf("ERROR: policy reload rejected, keeping previous policy: %v", err)
					continue
				}
				log.Printf("Policy reloaded from %s", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("WARN: policy watcher error: %v", err)
			}
		}
	}()
	return nil
}

package services

import (
	"os"
	"sync"
	"time"

	"georetail/backend/system"
)

// DatasetWatcher reloads the dataset when its file changes on disk
type DatasetWatcher struct {
	manager  *DatasetManager
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once

	lastMod  time.Time
	lastSize int64
}

func NewDatasetWatcher(manager *DatasetManager, interval time.Duration) *DatasetWatcher {
	return &DatasetWatcher{
		manager:  manager,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins polling. A non-positive interval disables the watcher.
func (w *DatasetWatcher) Start() {
	if w.interval <= 0 {
		return
	}
	w.prime()

	go func() {
		system.Info("Dataset watcher started (%s every %v)", w.manager.Path(), w.interval)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.Check()
			case <-w.stopChan:
				system.Info("Dataset watcher stopped")
				return
			}
		}
	}()
}

func (w *DatasetWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

func (w *DatasetWatcher) prime() {
	if fi, err := os.Stat(w.manager.Path()); err == nil {
		w.lastMod = fi.ModTime()
		w.lastSize = fi.Size()
	}
}

// Check reloads if the file changed since the last look and reports
// whether a reload was attempted.
func (w *DatasetWatcher) Check() bool {
	fi, err := os.Stat(w.manager.Path())
	if err != nil {
		system.Debug("Dataset watcher: %v", err)
		return false
	}
	if fi.ModTime().Equal(w.lastMod) && fi.Size() == w.lastSize {
		return false
	}
	w.lastMod = fi.ModTime()
	w.lastSize = fi.Size()

	system.Info("Dataset %s changed, reloading", w.manager.Path())
	// Failures are logged by the manager and keep the old snapshot
	_, _ = w.manager.Reload()
	return true
}

package services

import (
	"fmt"
	"io"
	"sync"

	"georetail/backend/models"
	"georetail/backend/system"
)

// EventFunc receives human readable notices about dataset changes
type EventFunc func(level, message string)

// DatasetManager loads datasets into the ranking service, one at a time
type DatasetManager struct {
	path     string
	resolver *ContinentResolver
	ranking  *RankingService
	webhook  *WebhookService
	onEvent  EventFunc

	mu       sync.Mutex
	lastSkip []RowError
}

func NewDatasetManager(path string, resolver *ContinentResolver, ranking *RankingService, webhook *WebhookService) *DatasetManager {
	return &DatasetManager{
		path:     path,
		resolver: resolver,
		ranking:  ranking,
		webhook:  webhook,
	}
}

// OnEvent registers a callback for reload notices
func (m *DatasetManager) OnEvent(fn EventFunc) {
	m.onEvent = fn
}

// Path is the dataset file watched and reloaded
func (m *DatasetManager) Path() string {
	return m.path
}

// Reload re-reads the configured file
func (m *DatasetManager) Reload() (models.DatasetInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := LoadCities(m.path, m.resolver)
	if err != nil {
		return m.fail(m.path, err)
	}
	return m.apply(res)
}

// Import replaces the snapshot with an uploaded dataset. The file on disk
// is left untouched.
func (m *DatasetManager) Import(name string, r io.Reader) (models.DatasetInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	source := "upload:" + name
	res, err := ParseDataset(name, r, m.resolver)
	if err != nil {
		return m.fail(source, err)
	}
	res.Source = source
	return m.apply(res)
}

// Skipped lists the rows rejected by the last successful load
func (m *DatasetManager) Skipped() []RowError {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RowError, len(m.lastSkip))
	copy(out, m.lastSkip)
	return out
}

func (m *DatasetManager) apply(res *LoadResult) (models.DatasetInfo, error) {
	info, err := m.ranking.Reload(res)
	if err != nil {
		return m.fail(res.Source, err)
	}
	m.lastSkip = res.Skipped

	for _, rowErr := range res.Skipped {
		system.Debug("Skipped %s %v", res.Source, rowErr)
	}
	m.emit("success", fmt.Sprintf("Loaded %d cities from %s", info.Cities, info.Source))

	if m.webhook.IsEnabled() {
		top, err := m.ranking.Top(Filter{})
		if err == nil {
			n := len(top.Cities)
			if n > 3 {
				n = 3
			}
			go func() {
				if err := m.webhook.SendDatasetAlert(info, top.Cities[:n]); err != nil {
					system.Warn("Failed to send reload notification: %v", err)
				}
			}()
		}
	}
	return info, nil
}

func (m *DatasetManager) fail(source string, err error) (models.DatasetInfo, error) {
	m.ranking.metrics.ReloadFailed()
	system.Error("Failed to load dataset %s: %v", source, err)
	m.emit("error", fmt.Sprintf("Failed to load %s: %v", source, err))

	if m.webhook.IsEnabled() {
		go func() {
			if werr := m.webhook.SendReloadFailure(source, err); werr != nil {
				system.Warn("Failed to send reload failure notification: %v", werr)
			}
		}()
	}
	return m.ranking.Info(), err
}

func (m *DatasetManager) emit(level, message string) {
	if m.onEvent != nil {
		m.onEvent(level, message)
	}
}

package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type MonitorFactory struct {
	logger *zap.Logger
}

type filterFunc func(string) bool

// Monitor streams the paths of corpus entries created while a target runs.
type Monitor struct {
	watchCtx   context.Context
	notifyChan chan<- string
	filter     filterFunc
	logger     *zap.Logger

	// states
	watcher *fsnotify.Watcher
}

func NewMonitorFactory(logger *zap.Logger) *MonitorFactory {
	return &MonitorFactory{
		logger: logger,
	}
}

// create a new Monitor for file creation events
//
// - `watchCtx` is the context to control the lifecycle of the watcher. After the context is done, the watcher stops and notifyChan is closed.
//
// - `notifyChan` receives the path of every created file.
//
// - `filter` decides which events are forwarded. If it returns false, the event is dropped. A nil filter forwards everything.
func (f *MonitorFactory) New(watchCtx context.Context, notifyChan chan<- string, filter filterFunc) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create corpus watcher: %w", err)
	}

	monitor := &Monitor{
		watchCtx,
		notifyChan, // send only channel
		filter,
		f.logger,
		watcher,
	}

	go monitor.watch()

	return monitor, nil
}

// add a directory to the watch list
func (m *Monitor) AddDir(dir string) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		m.logger.Error("Failed to get absolute path", zap.String("dir", dir), zap.Error(err))
		return
	}
	// check if the directory exists
	if _, err := os.Stat(absDir); os.IsNotExist(err) {
		m.logger.Error("Directory does not exist", zap.String("dir", absDir), zap.Error(err))
		return
	}
	if err := m.watcher.Add(absDir); err != nil {
		m.logger.Error("Failed to add directory to watcher", zap.String("dir", dir), zap.Error(err))
		return
	}
	m.logger.Debug("Added directory to watch list", zap.String("dir", dir))
}

func (m *Monitor) watch() {
	defer m.watcher.Close()
	defer close(m.notifyChan)
	for {
		select {
		case <-m.watchCtx.Done():
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				m.logger.Debug("fsnotify channel closed", zap.String("dir", event.Name))
				return
			}
			m.handleEvent(event)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				m.logger.Debug("fsnotify error channel closed", zap.Error(err))
				return
			}
			m.logger.Error("fsnotify error", zap.Error(err))
		}
	}
}

func (m *Monitor) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		m.logger.Debug("Corpus entry created", zap.String("file", event.Name))
		if m.filter == nil || m.filter(event.Name) {
			m.notifyChan <- event.Name
		} else {
			m.logger.Debug("Entry ignored by filter", zap.String("file", event.Name))
		}
	}
}

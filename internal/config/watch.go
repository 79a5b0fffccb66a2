package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a configuration file when it changes on disk. Each
// successful reload is delivered on Configs; parse and watch failures
// go to Errors and the previous configuration stays in effect.
type Watcher struct {
	w    *fsnotify.Watcher
	path string
	cfgC chan *Config
	erC  chan error
}

// Watch starts watching path. The containing directory is registered so
// editors that replace the file by rename are still observed.
func Watch(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()

		return nil, err
	}

	cw := &Watcher{w: w, path: abs, cfgC: make(chan *Config, 16), erC: make(chan error, 1)}
	go cw.loop()

	return cw, nil
}

func (cw *Watcher) loop() {
	for {
		select {
		case ev, ok := <-cw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != cw.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(cw.path)
			if err != nil {
				select {
				case cw.erC <- err:
				default:
				}

				continue
			}
			cw.cfgC <- cfg
		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}
			select {
			case cw.erC <- err:
			default:
			}
		}
	}
}

// Configs delivers each successfully reloaded configuration.
func (cw *Watcher) Configs() <-chan *Config { return cw.cfgC }

// Errors delivers reload and watch failures.
func (cw *Watcher) Errors() <-chan error { return cw.erC }

// Close stops the watcher.
func (cw *Watcher) Close() error { return cw.w.Close() }

// Package watch ingests audio files dropped into a directory tree. It is an
// alternative input path for serve mode: anything that can write a file
// (a recorder, rsync, scp) can feed the transcription queue.
package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/metrics"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
)

// audioExts are the file extensions the watcher will enqueue.
var audioExts = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
}

// Enqueuer accepts transcription jobs. Satisfied by *transcribe.WorkerPool.
type Enqueuer interface {
	Enqueue(j transcribe.Job) bool
}

// Status is the watcher state for the health endpoint.
type Status struct {
	Status        string `json:"status"` // "starting", "backfilling", "watching", "stopped"
	WatchDir      string `json:"watch_dir"`
	FilesEnqueued int64  `json:"files_enqueued"`
	FilesSkipped  int64  `json:"files_skipped"`
}

// Watcher monitors a directory tree for new audio files and enqueues them
// for transcription.
type Watcher struct {
	pool     Enqueuer
	watchDir string
	backfill bool
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup // backfill goroutine + in-flight debounce callbacks

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer
	stopped        bool // guarded by debounceMu

	filesEnqueued atomic.Int64
	filesSkipped  atomic.Int64
	status        atomic.Value // string
}

// New creates a watcher over watchDir. When backfill is true, audio files
// already present are enqueued on Start.
func New(pool Enqueuer, watchDir string, backfill bool, log zerolog.Logger) *Watcher {
	w := &Watcher{
		pool:           pool,
		watchDir:       watchDir,
		backfill:       backfill,
		log:            log.With().Str("component", "watcher").Logger(),
		done:           make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}
	w.status.Store("starting")
	return w
}

// Start initializes the fsnotify watcher over the directory tree and begins
// watching. Backfill of existing files runs in a background goroutine.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fsw

	dirCount := 0
	err = filepath.WalkDir(w.watchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("error walking directory")
			return nil // continue walking
		}
		if d.IsDir() {
			if addErr := fsw.Add(path); addErr != nil {
				w.log.Warn().Err(addErr).Str("path", path).Msg("failed to watch directory")
			} else {
				dirCount++
			}
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return err
	}

	w.log.Info().
		Int("directories", dirCount).
		Str("watch_dir", w.watchDir).
		Msg("file watcher initialized")

	go w.watchLoop()

	if w.backfill {
		w.wg.Add(1)
		go w.runBackfill()
	} else {
		w.status.Store("watching")
	}

	return nil
}

// Stop cancels pending debounce timers, waits for backfill and any in-flight
// enqueues to finish, then closes the fsnotify watcher. After Stop returns the
// watcher will not touch the pool again, so it is safe to stop the pool.
func (w *Watcher) Stop() {
	w.status.Store("stopped")
	close(w.done)

	w.debounceMu.Lock()
	w.stopped = true
	for path, t := range w.debounceTimers {
		t.Stop()
		delete(w.debounceTimers, path)
	}
	w.debounceMu.Unlock()

	w.wg.Wait()

	if w.watcher != nil {
		w.watcher.Close()
	}
	w.log.Info().
		Int64("files_enqueued", w.filesEnqueued.Load()).
		Int64("files_skipped", w.filesSkipped.Load()).
		Msg("file watcher stopped")
}

// Status returns the current watcher state.
func (w *Watcher) Status() Status {
	s, _ := w.status.Load().(string)
	return Status{
		Status:        s,
		WatchDir:      w.watchDir,
		FilesEnqueued: w.filesEnqueued.Load(),
		FilesSkipped:  w.filesSkipped.Load(),
	}
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			// New directory: add it to the watch set so we catch files in
			// newly created date directories.
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.watcher.Add(event.Name); err != nil {
					w.log.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
				}
				continue
			}

			if !isAudioFile(event.Name) {
				continue
			}

			w.scheduleEnqueue(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleEnqueue debounces by 500ms. This coalesces rapid Create+Write
// events and ensures the file is fully written before it is read.
func (w *Watcher) scheduleEnqueue(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(500 * time.Millisecond)
		return
	}

	w.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		// A timer that fires while Stop drains must not reach the pool: its
		// job channel may already be closed. Any callback that passes the
		// stopped check registers with the WaitGroup under the same mutex
		// Stop holds, so Stop cannot return before enqueueFile finishes.
		w.debounceMu.Lock()
		if w.stopped {
			w.debounceMu.Unlock()
			return
		}
		delete(w.debounceTimers, path)
		w.wg.Add(1)
		w.debounceMu.Unlock()
		defer w.wg.Done()

		w.enqueueFile(path)
	})
}

func (w *Watcher) enqueueFile(path string) {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		w.filesSkipped.Add(1)
		metrics.WatcherFilesTotal.WithLabelValues("skipped").Inc()
		return
	}

	ok := w.pool.Enqueue(transcribe.Job{
		AudioPath: path,
		Source:    "watch",
	})
	if !ok {
		w.filesSkipped.Add(1)
		metrics.WatcherFilesTotal.WithLabelValues("dropped").Inc()
		w.log.Warn().Str("path", path).Msg("transcription queue full, file dropped")
		return
	}

	w.filesEnqueued.Add(1)
	metrics.WatcherFilesTotal.WithLabelValues("enqueued").Inc()
	w.log.Debug().Str("path", path).Msg("audio file enqueued")
}

// runBackfill enqueues audio files already present in the watch directory,
// oldest first.
func (w *Watcher) runBackfill() {
	defer w.wg.Done()

	w.status.Store("backfilling")
	start := time.Now()

	type fileEntry struct {
		path    string
		modTime time.Time
	}
	var files []fileEntry

	_ = filepath.WalkDir(w.watchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !isAudioFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, fileEntry{path: path, modTime: info.ModTime()})
		return nil
	})

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	for _, f := range files {
		select {
		case <-w.done:
			return
		default:
		}
		w.enqueueFile(f.path)
	}

	w.status.Store("watching")
	if len(files) > 0 {
		w.log.Info().
			Int("files", len(files)).
			Dur("elapsed", time.Since(start)).
			Msg("backfill complete")
	}
}

func isAudioFile(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Pruner evicts old audio from the local archive once it has aged past the
// retention window. S3 retains everything; before deleting, the pruner
// verifies the file exists in S3 to prevent data loss.
type Pruner struct {
	audioDir  string
	retention time.Duration
	interval  time.Duration
	s3        *S3Store
	log       zerolog.Logger
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewPruner creates a pruner evicting local files older than retention.
func NewPruner(audioDir string, retention time.Duration, s3 *S3Store, log zerolog.Logger) *Pruner {
	return &Pruner{
		audioDir:  audioDir,
		retention: retention,
		interval:  1 * time.Hour,
		s3:        s3,
		log:       log.With().Str("component", "pruner").Logger(),
		stop:      make(chan struct{}),
	}
}

func (p *Pruner) Start() {
	go p.loop()
}

func (p *Pruner) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Pruner) loop() {
	// Run once on startup to clear any backlog from downtime
	p.prune()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.prune()
		case <-p.stop:
			return
		}
	}
}

func (p *Pruner) prune() {
	if p.retention == 0 {
		return
	}

	cutoff := time.Now().Add(-p.retention)
	var prunedCount, skippedNotInS3 int
	var prunedBytes int64

	type fileEntry struct {
		path    string
		key     string
		modTime time.Time
		size    int64
	}
	var files []fileEntry

	filepath.WalkDir(p.audioDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(p.audioDir, path)
		if relErr != nil {
			return nil
		}
		files = append(files, fileEntry{
			path:    path,
			key:     filepath.ToSlash(rel),
			modTime: info.ModTime(),
			size:    info.Size(),
		})
		return nil
	})

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	for _, f := range files {
		if !f.modTime.Before(cutoff) {
			continue
		}
		if p.s3 != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			inS3 := p.s3.Exists(ctx, f.key)
			cancel()
			if !inS3 {
				skippedNotInS3++
				p.log.Warn().Str("key", f.key).Msg("skipping prune: file not in s3")
				continue
			}
		}
		if err := os.Remove(f.path); err == nil {
			prunedCount++
			prunedBytes += f.size
		}
	}

	p.removeEmptyDirs()

	if prunedCount > 0 || skippedNotInS3 > 0 {
		p.log.Info().
			Int("pruned", prunedCount).
			Str("freed", humanizeBytes(prunedBytes)).
			Int("skipped_not_in_s3", skippedNotInS3).
			Msg("archive prune complete")
	}
}

// removeEmptyDirs cleans up {source}/{date} directories left empty by pruning.
func (p *Pruner) removeEmptyDirs() {
	entries, _ := os.ReadDir(p.audioDir)
	for _, srcDir := range entries {
		if !srcDir.IsDir() {
			continue
		}
		srcPath := filepath.Join(p.audioDir, srcDir.Name())
		dateDirs, _ := os.ReadDir(srcPath)
		for _, dateDir := range dateDirs {
			if !dateDir.IsDir() {
				continue
			}
			datePath := filepath.Join(srcPath, dateDir.Name())
			remaining, _ := os.ReadDir(datePath)
			if len(remaining) == 0 {
				os.Remove(datePath)
			}
		}
		remaining, _ := os.ReadDir(srcPath)
		if len(remaining) == 0 {
			os.Remove(srcPath)
		}
	}
}

func humanizeBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case b >= GB:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

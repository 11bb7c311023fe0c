package filehandler

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// FrameSource is what a FrameSequence reads from. *DecodeSession is the
// production implementation.
type FrameSource interface {
	Dir() string
	FramePath(i int) string
	Exited() <-chan struct{}
}

var newWatcher = fsnotify.NewWatcher

// FrameSequence yields the frames of a FrameSource in index order, each
// only once it is completely written. The decoder writes frames strictly in
// order, so frame i is complete as soon as frame i+1 exists or the decoder
// has exited. Waiting is driven by directory create events and the exit
// signal; nothing polls.
//
// A FrameSequence does not own its source and must be closed before the
// source is.
type FrameSequence struct {
	src     FrameSource
	watcher *fsnotify.Watcher

	// created holds at most one pending wakeup; bursts of events coalesce.
	created chan struct{}
	stop    chan struct{}
	pumped  sync.WaitGroup

	next int
	done bool

	closeOnce sync.Once
	closeErr  error
}

// NewFrameSequence starts watching src's directory. The watch is in place
// before NewFrameSequence returns, so no frame created afterwards is missed.
func NewFrameSequence(src FrameSource) (*FrameSequence, error) {
	w, err := newWatcher()
	if err != nil {
		// Each in-flight video holds one inotify instance.
		log.Error().Err(err).
			Str("operation", "detect:video").
			Msg("Cannot create frame watcher; check fs.inotify.max_user_instances")
		return nil, fmt.Errorf("failed to create frame watcher (fs.inotify.max_user_instances may be exhausted): %w", err)
	}
	if err := w.Add(src.Dir()); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch frame directory: %w", err)
	}

	fs := &FrameSequence{
		src:     src,
		watcher: w,
		created: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		next:    1,
	}
	fs.pumped.Add(1)
	go fs.pump()
	return fs, nil
}

func (fs *FrameSequence) pump() {
	defer fs.pumped.Done()
	for {
		select {
		case <-fs.stop:
			return
		case ev, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				fs.wake()
			}
		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			// Dropped events only cost a re-check.
			log.Warn().Err(err).Str("operation", "detect:video").Msg("Frame watcher error")
			fs.wake()
		}
	}
}

func (fs *FrameSequence) wake() {
	select {
	case fs.created <- struct{}{}:
	default:
	}
}

// Next returns the path of the next complete frame. ok is false once the
// sequence is exhausted. The only error is ctx's, and once ctx is done Next
// returns it even if finished frames are still on disk.
func (fs *FrameSequence) Next(ctx context.Context) (path string, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	for !fs.done {
		i := fs.next

		// Snapshot exit before looking at the directory. Checking afterwards
		// could miss a frame written just before the decoder exited.
		finished := fs.finished()

		if fileExists(fs.src.FramePath(i + 1)) {
			fs.next++
			return fs.src.FramePath(i), true, nil
		}

		if !finished {
			select {
			case <-fs.created:
			case <-fs.src.Exited():
			case <-ctx.Done():
				return "", false, ctx.Err()
			}
			// A cancelled ctx kills the decoder, which also fires Exited.
			if err := ctx.Err(); err != nil {
				return "", false, err
			}
			continue
		}

		fs.done = true
		if fileExists(fs.src.FramePath(i)) {
			fs.next++
			return fs.src.FramePath(i), true, nil
		}
	}
	return "", false, nil
}

// Yielded is the number of frames returned so far.
func (fs *FrameSequence) Yielded() int { return fs.next - 1 }

func (fs *FrameSequence) finished() bool {
	select {
	case <-fs.src.Exited():
		return true
	default:
		return false
	}
}

// Close stops watching. It is safe to call more than once.
func (fs *FrameSequence) Close() error {
	fs.closeOnce.Do(func() {
		close(fs.stop)
		fs.closeErr = fs.watcher.Close()
		fs.pumped.Wait()
	})
	return fs.closeErr
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

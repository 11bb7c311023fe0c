package filehandler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrDecoderUnavailable means the ffmpeg binary could not be found.
var ErrDecoderUnavailable = errors.New("frame decoder unavailable")

// DecoderSpawnError means ffmpeg was found but could not be started.
type DecoderSpawnError struct {
	Path string
	Err  error
}

func (e *DecoderSpawnError) Error() string {
	return fmt.Sprintf("failed to start frame decoder %s: %v", e.Path, e.Err)
}

func (e *DecoderSpawnError) Unwrap() error { return e.Err }

// DecoderState is the lifecycle of the ffmpeg process behind a session.
type DecoderState int

const (
	DecoderRunning DecoderState = iota
	DecoderExitedOK
	DecoderExitedError
)

func (s DecoderState) String() string {
	switch s {
	case DecoderRunning:
		return "running"
	case DecoderExitedOK:
		return "exited-ok"
	case DecoderExitedError:
		return "exited-error"
	}
	return "unknown"
}

// SessionOptions configures StartDecodeSession.
type SessionOptions struct {
	// FFmpegPath is the decoder binary name or path. Empty means "ffmpeg".
	FFmpegPath string

	// FrameSize is the square output edge length. Zero means DefaultFrameSize.
	FrameSize int

	// TempDir is the parent of the session's frame directory. Empty means
	// the OS default.
	TempDir string
}

// DecodeSession owns one ffmpeg process and the directory it writes
// numbered PNG frames into (1.png, 2.png, ...). Close must be called
// exactly once the caller is done; it stops the process and removes the
// directory.
type DecodeSession struct {
	dir    string
	cmd    *exec.Cmd
	exited chan struct{}
	stderr *tailBuffer

	mu      sync.Mutex
	state   DecoderState
	exitErr error

	closeOnce sync.Once
	closeErr  error
}

// StartDecodeSession launches ffmpeg on inputPath. It fails with
// ErrDecoderUnavailable when the binary cannot be located and with a
// *DecoderSpawnError when it cannot be started. Cancelling ctx kills the
// decoder; the session still has to be closed.
func StartDecodeSession(ctx context.Context, inputPath string, opts SessionOptions) (*DecodeSession, error) {
	bin := opts.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	size := opts.FrameSize
	if size <= 0 {
		size = DefaultFrameSize
	}

	ffmpegPath, err := exec.LookPath(bin)
	if err != nil {
		log.Error().Err(err).
			Str("operation", "detect:video").
			Str("ffmpeg", bin).
			Msg("ffmpeg not found")
		return nil, fmt.Errorf("%w: %v", ErrDecoderUnavailable, err)
	}

	dir, err := os.MkdirTemp(opts.TempDir, "video-frames-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create frame directory: %w", err)
	}

	s := &DecodeSession{
		dir:    dir,
		exited: make(chan struct{}),
		stderr: &tailBuffer{max: 4096},
	}
	s.cmd = exec.CommandContext(ctx, ffmpegPath, decoderArgs(inputPath, dir, size)...)
	s.cmd.Stderr = s.stderr

	log.Debug().
		Str("operation", "detect:video").
		Str("ffmpeg", ffmpegPath).
		Str("input", filepath.Base(inputPath)).
		Str("frameDir", dir).
		Msg("Starting ffmpeg process")

	if err := s.cmd.Start(); err != nil {
		removeDir(dir)
		return nil, &DecoderSpawnError{Path: ffmpegPath, Err: err}
	}

	go s.wait()
	return s, nil
}

// decoderArgs keeps only bright key frames, decodes at reduced resolution,
// and writes one file per selected frame without frame-rate padding.
func decoderArgs(inputPath, dir string, size int) []string {
	scale := fmt.Sprintf("scale=%d:%d", size, size)
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-skip_frame", "nokey",
		"-lowres", "3",
		"-i", inputPath,
		"-an",
		"-vf", "select=eq(pict_type\\,PICT_TYPE_I)," +
			"blackframe=amount=0," +
			"metadata=mode=select:key=lavfi.blackframe.pblack:value=50:function=less," +
			scale,
		"-f", "image2",
		"-vsync", "0",
		filepath.Join(dir, "%d.png"),
	}
}

func (s *DecodeSession) wait() {
	err := s.cmd.Wait()

	s.mu.Lock()
	if err != nil {
		s.state = DecoderExitedError
		s.exitErr = err
	} else {
		s.state = DecoderExitedOK
	}
	s.mu.Unlock()

	if err != nil {
		// A failed decoder still leaves valid frames behind.
		log.Warn().Err(err).
			Str("operation", "detect:video").
			Str("stderr", s.stderr.String()).
			Msg("ffmpeg exited with error")
	} else {
		log.Debug().Str("operation", "detect:video").Msg("ffmpeg exited")
	}
	close(s.exited)
}

// Dir is the directory frames are written to.
func (s *DecodeSession) Dir() string { return s.dir }

// FramePath returns the path of the 1-based frame i.
func (s *DecodeSession) FramePath(i int) string {
	return filepath.Join(s.dir, strconv.Itoa(i)+".png")
}

// Exited is closed once the decoder process has exited.
func (s *DecodeSession) Exited() <-chan struct{} { return s.exited }

// State reports the decoder state and, after a failed exit, its error.
func (s *DecodeSession) State() (DecoderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.exitErr
}

// Frames returns a sequence over this session's frames. The sequence must
// be closed before the session.
func (s *DecodeSession) Frames() (*FrameSequence, error) {
	return NewFrameSequence(s)
}

// Close kills the decoder if it is still running, waits for it, and
// removes the frame directory. Later calls return the first result.
func (s *DecodeSession) Close() error {
	s.closeOnce.Do(func() {
		select {
		case <-s.exited:
		default:
			if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				log.Warn().Err(err).Msg("Failed to kill ffmpeg")
			}
			<-s.exited
		}
		s.closeErr = removeDir(s.dir)
	})
	return s.closeErr
}

func removeDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("Failed to remove frame directory")
		return err
	}
	log.Debug().Str("dir", dir).Msg("Frame directory removed")
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// Package diskstore is the filesystem-backed half of the storage fabric: a
// single flat directory of upload blobs, named after their saved name, plus
// a background writer used by streaming saves.
package diskstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Logger is designed to be satisfied by log.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Disk is a flat, on-disk store rooted at a single directory. Filenames are
// saved names; there is no nesting and no metadata sidecar.
type Disk struct {
	savePath string
	logger   Logger
}

// New returns a Disk rooted at savePath, which must already exist and be a
// directory.
func New(savePath string, logger Logger) (*Disk, error) {
	fi, err := os.Stat(savePath)
	if err != nil {
		return nil, fmt.Errorf("save_path %q: %w", savePath, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("save_path %q is not a directory", savePath)
	}
	return &Disk{savePath: savePath, logger: logger}, nil
}

// Count returns the number of direct children of save_path, used once at
// startup to seed the permanent-upload counter.
func (d *Disk) Count() (int, error) {
	entries, err := os.ReadDir(d.savePath)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// PathFor returns the on-disk path for name, stripping any directory
// components so a caller-supplied name can never traverse outside save_path.
func (d *Disk) PathFor(name string) string {
	return filepath.Join(d.savePath, filepath.Base(name))
}

// Open returns the file stored under name. A missing file is reported as
// (nil, nil); any other failure is returned as an error.
func (d *Disk) Open(name string) (*os.File, error) {
	f, err := os.Open(d.PathFor(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}

// Len returns the size in bytes of an already-open file.
func (d *Disk) Len(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Remove deletes the file stored under name. Removing an absent file is not
// an error, since callers use Remove unconditionally to clean up both tiers.
func (d *Disk) Remove(name string) error {
	err := os.Remove(d.PathFor(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ChunkSink is a send-only, unbounded handle to a background writer task. A
// producer calls Send any number of times, then Close exactly once; Close
// lets the writer drain and exit cleanly once it has appended every
// previously sent chunk.
type ChunkSink struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]byte
	closed bool
}

func newChunkSink() *ChunkSink {
	s := &ChunkSink{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Send enqueues a chunk to be appended, in order, by the writer goroutine.
// It never blocks on I/O.
func (s *ChunkSink) Send(chunk []byte) {
	s.mu.Lock()
	s.queue = append(s.queue, chunk)
	s.cond.Signal()
	s.mu.Unlock()
}

// Close signals that no further chunks will be sent. The writer goroutine
// finishes appending whatever remains queued, then exits.
func (s *ChunkSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *ChunkSink) next() (chunk []byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return nil, false
	}
	chunk, s.queue = s.queue[0], s.queue[1:]
	return chunk, true
}

// StartSave creates the file for name and returns a sink that streams
// chunks to it, in order, from a background goroutine. I/O errors are
// logged, not propagated to the producer; once an error occurs the writer
// keeps draining (and discarding) the sink so Send never blocks, then exits
// when the sink is closed.
func (d *Disk) StartSave(name string) *ChunkSink {
	sink := newChunkSink()
	path := d.PathFor(name)

	go func() {
		f, err := os.Create(path)
		if err != nil {
			d.logger.Printf("disk: failed to create %q: %v", path, err)
			d.drain(sink)
			return
		}
		defer f.Close()

		writeFailed := false
		for {
			chunk, ok := sink.next()
			if !ok {
				return
			}
			if writeFailed {
				continue
			}
			if _, err := f.Write(chunk); err != nil {
				d.logger.Printf("disk: failed to write %q: %v", path, err)
				writeFailed = true
			}
		}
	}()

	return sink
}

func (d *Disk) drain(sink *ChunkSink) {
	for {
		if _, ok := sink.next(); !ok {
			return
		}
	}
}

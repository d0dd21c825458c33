// Package checkpoint implements the append-only JSONL logs that make
// analysis runs resumable: one line per completed result in the checkpoint
// log, one line per item failure in the failure log. The checkpoint log is
// the sole source of truth for what is already done.
package checkpoint

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
)

// maxLineBytes bounds a single serialized record during read-back.
const maxLineBytes = 1 << 20

// Log is an append-only, newline-delimited JSON record store. Appends are
// serialized through a mutex so concurrent workers never interleave
// partial lines, and a file lock rejects a second process appending to
// the same log.
type Log struct {
	path string
	mu   sync.Mutex
	f    *os.File
	lock *flock.Flock
}

// Open creates parent directories as needed, opens path for appending,
// and acquires an advisory file lock. A log already locked by another
// process is a setup error.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "checkpoint: create dir %s", dir)
		}
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: lock %s", path)
	}
	if !ok {
		return nil, eris.Errorf("checkpoint: %s is locked by another process", path)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, eris.Wrapf(err, "checkpoint: open %s", path)
	}

	return &Log{path: path, f: f, lock: lock}, nil
}

// Append serializes v and writes it as a single line. This is the only
// mutation entry point; each line is written with one Write call so a
// record is either fully present or absent.
func (l *Log) Append(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "checkpoint: marshal record")
	}
	line := append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.f.Write(line); err != nil {
		return eris.Wrapf(err, "checkpoint: append to %s", l.path)
	}
	return nil
}

// Path returns the file path backing this log.
func (l *Log) Path() string {
	return l.path
}

// Close releases the file handle and the advisory lock.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.f.Close()
	if unlockErr := l.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	if err != nil {
		return eris.Wrapf(err, "checkpoint: close %s", l.path)
	}
	return nil
}

// Scan streams the log line by line through fn, using an independent
// read-only handle so it is safe alongside an open writer. Blank lines
// are skipped; fn decides what to do with lines that fail to decode.
// A missing file scans zero lines.
func (l *Log) Scan(fn func(line []byte) error) error {
	return Scan(l.path, fn)
}

// Scan streams the JSONL file at path line by line through fn.
// A missing file is treated as empty.
func Scan(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "checkpoint: open %s for scan", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return eris.Wrapf(err, "checkpoint: scan %s", path)
	}
	return nil
}

// Package filedb is a simple append-only database of lines kept in one file.
//
// The matching engine uses it as its journal: every line is written before the
// state change it describes, so the file alone is enough to rebuild the engine.
package filedb

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clob/pkg/xlog"

	"github.com/nxadm/tail"
)

var logger = xlog.GetLogger()

// MaxLineSize upper bound of one journal line when scanning
const MaxLineSize = 4 << 20

type Filedb struct {
	File     *os.File
	FilePath string

	// Handler receives batches of lines in Drain
	Handler func([]string) error

	mu sync.Mutex
}

func New(filePath string) (fdb *Filedb, err error) {
	fdb = &Filedb{
		FilePath: filePath,
	}
	err = fdb.Open()

	return
}

func (f *Filedb) Open() (err error) {
	err = os.MkdirAll(filepath.Dir(f.FilePath), 0755)
	if err != nil {
		return
	}

	f.File, err = os.OpenFile(f.FilePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	return
}

func (f *Filedb) Close() (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.File == nil {
		return
	}

	err = f.File.Close()
	if err != nil {
		return
	}

	f.File = nil

	return
}

// WriteLine appends s as one line, a trailing newline is added when missing
func (f *Filedb) WriteLine(s string) (err error) {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.File == nil {
		return os.ErrClosed
	}
	n, err := f.File.WriteString(s)
	if err != nil {
		logger.Errorf("WriteLine %s failed with err:%s", f.FilePath, err)
		if n > 0 {
			f.rollback(int64(n))
		}
		return
	}

	return
}

// rollback drops the last n bytes, the fragment of a failed write
func (f *Filedb) rollback(n int64) {
	stat, err := f.File.Stat()
	if err == nil {
		err = f.File.Truncate(stat.Size() - n)
	}
	if err != nil {
		logger.Errorf("WriteLine %s rollback of %d bytes failed with err:%s", f.FilePath, n, err)
	}
}

// TruncatePartial drops an incomplete last line, one without its newline, and
// returns the number of bytes dropped. Such a line is left by a write that never
// finished, so nothing has read it as a complete line.
func (f *Filedb) TruncatePartial() (n int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.File == nil {
		return 0, os.ErrClosed
	}
	stat, err := f.File.Stat()
	if err != nil {
		return
	}
	size := stat.Size()
	if size == 0 {
		return
	}

	last := make([]byte, 1)
	_, err = f.File.ReadAt(last, size-1)
	if err != nil {
		return
	}
	if last[0] == '\n' {
		return
	}

	// find the newline ending the last complete line
	keep := int64(0)
	chunk := int64(1024)
	for end := size; end > 0; end -= chunk {
		off := end - chunk
		if off < 0 {
			off = 0
		}
		b := make([]byte, end-off)
		_, err = f.File.ReadAt(b, off)
		if err != nil && !errors.Is(err, io.EOF) {
			return
		}
		err = nil
		if i := strings.LastIndexByte(string(b), '\n'); i >= 0 {
			keep = off + int64(i) + 1
			break
		}
	}

	err = f.File.Truncate(keep)
	if err != nil {
		return
	}
	n = size - keep
	logger.Warningf("TruncatePartial %s dropped %d bytes of an incomplete line", f.FilePath, n)
	return
}

// Sync flushes the file to disk
func (f *Filedb) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.File == nil {
		return os.ErrClosed
	}
	return f.File.Sync()
}

// ReadLastLine reads the last non-empty line of the file
func (f *Filedb) ReadLastLine() (s string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stat, err := f.File.Stat()
	if err != nil {
		return
	}

	// read backwards in chunks until a full line is found
	size := stat.Size()
	chunk := int64(1024)
	for {
		off := size - chunk
		if off < 0 {
			off = 0
		}
		b := make([]byte, size-off)
		_, err = f.File.ReadAt(b, off)
		if err != nil && !errors.Is(err, io.EOF) {
			return
		}
		err = nil

		txt := string(b)
		if !strings.HasSuffix(txt, "\n") {
			// skip an incomplete last line
			j := strings.LastIndex(txt, "\n")
			if j < 0 {
				if off == 0 {
					return "", nil
				}
				chunk *= 2
				continue
			}
			txt = txt[:j+1]
		}

		txt = strings.TrimRight(txt, " \n")
		i := strings.LastIndex(txt, "\n")
		if i >= 0 || off == 0 {
			s = strings.TrimSpace(txt[i+1:])
			return
		}
		chunk *= 2
	}
}

// ReadFirstLine reads the first non-empty line of the file
func (f *Filedb) ReadFirstLine() (s string, err error) {
	err = f.Scan(func(line string) error {
		s = line
		return io.EOF
	})
	if errors.Is(err, io.EOF) {
		return s, nil
	}
	if err == nil {
		err = io.EOF
	}
	return
}

// Scan calls fn for every complete non-empty line from the beginning of the
// file, an incomplete last line is skipped. A non-nil error from fn stops the
// scan and is returned.
func (f *Filedb) Scan(fn func(line string) error) (err error) {
	r, err := os.Open(f.FilePath)
	if err != nil {
		return
	}
	defer r.Close()

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		var s string
		s, err = br.ReadString('\n')
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(s) != "" {
				logger.Warningf("Scan %s skipped an incomplete last line of %d bytes", f.FilePath, len(s))
			}
			return nil
		}
		if err != nil {
			return
		}
		if len(s) > MaxLineSize {
			return bufio.ErrTooLong
		}

		line := strings.TrimSpace(s)
		if line == "" {
			continue
		}
		err = fn(line)
		if err != nil {
			return
		}
	}
}

// Tailf follows the file from the beginning and sends every complete line to ch
// until ctx is done. ch is not closed.
func (f *Filedb) Tailf(ctx context.Context, ch chan<- string) (err error) {
	ta, err := tail.TailFile(f.FilePath, tail.Config{
		Follow:        true,
		ReOpen:        true,
		CompleteLines: true,
		MustExist:     true,
		Logger:        tail.DiscardingLogger,
	})
	if err != nil {
		return
	}
	defer ta.Cleanup()
	defer ta.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-ta.Lines:
			if !ok {
				return ta.Err()
			}
			if line.Err != nil {
				// stop here instead of skipping, a missing line would reorder the data
				return line.Err
			}
			if strings.TrimSpace(line.Text) == "" {
				continue
			}
			select {
			case ch <- line.Text:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Drain reads lines from ch and passes them to f.Handler in batches of up to
// batchSize, a batch being whatever is already queued. It returns when ch is
// closed, ctx is done or the handler fails.
func (f *Filedb) Drain(ctx context.Context, ch <-chan string, batchSize int) (err error) {
	logger.Infof("Drain %s started", f.FilePath)
	defer func() {
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("Drain %s failed with err:%s", f.FilePath, err)
		} else {
			logger.Infof("Drain %s done", f.FilePath)
		}
	}()

	if batchSize <= 0 {
		batchSize = 100
	}
	ss := make([]string, batchSize)

	var (
		total int
		first time.Time
	)

	for {
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ss[0], ok = <-ch:
			if !ok {
				return
			}
		}

		size := 1
		for size < batchSize && len(ch) > 0 {
			ss[size], ok = <-ch
			if !ok {
				break
			}
			size++
		}

		if first.IsZero() {
			first = time.Now()
		}

		err = f.Handler(ss[:size])
		if err != nil {
			return
		}

		total += size
		logger.Tracef("Drain %s handled %d lines (%d total in %s)", f.FilePath, size, total, time.Since(first))
		if !ok {
			return
		}
	}
}

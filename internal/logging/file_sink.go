package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrBufferFull is returned by Enqueue when a record was dropped
var ErrBufferFull = errors.New("turn log buffer full")

// FileSink writes turn records as JSON Lines to local files with
// size-based rotation and periodic flush.
type FileSink struct {
	fileTemplate  string        // e.g. "/var/log/tg-bot/turns-%s.jsonl"
	maxSize       int64         // maximum size in bytes before rotation
	maxFiles      int           // maximum number of rotated files to keep
	flushInterval time.Duration // flush the buffer every flushInterval if not empty

	mu          sync.Mutex
	currentFile string
	file        *os.File
	writer      *bufio.Writer
	currentSize int64

	logCh  chan *TurnRecord
	doneCh chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewFileSink creates a FileSink.
// bufferSize determines how many records can be queued before new ones are dropped.
// flushInterval defines how often the buffer is flushed to disk.
func NewFileSink(fileTemplate string, maxSize int64, maxFiles, bufferSize int, flushInterval time.Duration) (*FileSink, error) {
	sink := &FileSink{
		fileTemplate:  fileTemplate,
		maxSize:       maxSize,
		maxFiles:      maxFiles,
		flushInterval: flushInterval,
		logCh:         make(chan *TurnRecord, bufferSize),
		doneCh:        make(chan struct{}),
	}

	if err := sink.openFile(); err != nil {
		return nil, err
	}

	sink.wg.Add(1)
	go sink.run()

	return sink, nil
}

// newFileName applies the current timestamp to fileTemplate
func (s *FileSink) newFileName() string {
	timestamp := time.Now().Format("20060102150405.000000")
	return fmt.Sprintf(s.fileTemplate, timestamp)
}

// openFile opens the active file and prepares the buffered writer,
// creating the directory if needed
func (s *FileSink) openFile() error {
	s.currentFile = s.newFileName()
	dir := filepath.Dir(s.currentFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(s.currentFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	s.currentSize = fi.Size()
	s.file = file
	s.writer = bufio.NewWriter(file)
	return nil
}

// rotateIfNeeded opens a new file when writing n more bytes would exceed maxSize
func (s *FileSink) rotateIfNeeded(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentSize == 0 || s.currentSize+int64(n) < s.maxSize {
		return nil
	}

	if err := s.writer.Flush(); err != nil {
		return err
	}
	if err := s.file.Close(); err != nil {
		return err
	}
	return s.openFile()
}

// cleanupOldFiles removes the oldest files beyond maxFiles
func (s *FileSink) cleanupOldFiles() error {
	pattern := fmt.Sprintf(s.fileTemplate, "*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	// Names embed a sortable timestamp.
	sort.Strings(matches)

	excess := len(matches) - s.maxFiles
	for i := 0; i < excess; i++ {
		if matches[i] == s.currentFile {
			continue
		}
		_ = os.Remove(matches[i])
	}
	return nil
}

func (s *FileSink) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-s.logCh:
			s.writeRecord(rec)
		case <-ticker.C:
			s.mu.Lock()
			_ = s.writer.Flush()
			s.mu.Unlock()
		case <-s.doneCh:
			for {
				select {
				case rec := <-s.logCh:
					s.writeRecord(rec)
				default:
					s.mu.Lock()
					_ = s.writer.Flush()
					_ = s.file.Close()
					s.mu.Unlock()
					return
				}
			}
		}
	}
}

func (s *FileSink) writeRecord(rec *TurnRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	line := string(data) + "\n"
	n := len(line)

	if err := s.rotateIfNeeded(n); err != nil {
		Errorf("turn log rotation failed: %v", err)
	}

	s.mu.Lock()
	_, _ = s.writer.WriteString(line)
	s.currentSize += int64(n)
	s.mu.Unlock()

	_ = s.cleanupOldFiles()
}

// Enqueue queues rec. When the buffer is full the record is dropped.
func (s *FileSink) Enqueue(rec *TurnRecord) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.New("turn log sink closed")
	}

	select {
	case s.logCh <- rec:
		return nil
	default:
		return ErrBufferFull
	}
}

// Shutdown flushes buffered records and closes the file
func (s *FileSink) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.doneCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

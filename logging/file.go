package logging

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileOptions configures a FileWriter.
type FileOptions struct {
	Dir       string
	Filename  string
	MaxSizeMB int
	// MaxFiles bounds the rotated files kept next to the live file.
	MaxFiles int
	// MaxAge forces a rotation once the live file is older than this. Zero means daily.
	MaxAge time.Duration
}

// FileWriter writes logs to rotating files with compression.
type FileWriter struct {
	mu           sync.Mutex
	opts         FileOptions
	maxSize      int64
	currentFile  *os.File
	currentSize  int64
	lastRotation time.Time
	now          func() time.Time
	// background tracks compression and cleanup started by rotations.
	background sync.WaitGroup
}

// NewFileWriter opens the live log file, creating the directory when needed.
func NewFileWriter(opts FileOptions) (*FileWriter, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf("log directory is required")
	}
	if opts.Filename == "" {
		opts.Filename = "storefront.log"
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 5
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 24 * time.Hour
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	fw := &FileWriter{
		opts:    opts,
		maxSize: int64(opts.MaxSizeMB) * 1024 * 1024,
		now:     time.Now,
	}
	fw.lastRotation = fw.now()
	if err := fw.openFile(); err != nil {
		return nil, err
	}
	return fw, nil
}

// Path returns the live log file path.
func (fw *FileWriter) Path() string {
	return filepath.Join(fw.opts.Dir, fw.opts.Filename)
}

func (fw *FileWriter) openFile() error {
	f, err := os.OpenFile(fw.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	fw.currentFile = f
	fw.currentSize = info.Size()
	return nil
}

func (fw *FileWriter) Write(p []byte) (n int, err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.currentFile == nil {
		return 0, fmt.Errorf("log file is closed")
	}
	if fw.shouldRotate(int64(len(p))) {
		if err := fw.rotate(); err != nil {
			return 0, err
		}
	}
	n, err = fw.currentFile.Write(p)
	fw.currentSize += int64(n)
	return n, err
}

func (fw *FileWriter) shouldRotate(writeSize int64) bool {
	if fw.currentSize > 0 && fw.currentSize+writeSize > fw.maxSize {
		return true
	}
	return fw.now().Sub(fw.lastRotation) > fw.opts.MaxAge
}

// Rotate closes the live file and starts a new one.
func (fw *FileWriter) Rotate() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.rotate()
}

func (fw *FileWriter) rotate() error {
	if fw.currentFile != nil {
		if err := fw.currentFile.Close(); err != nil {
			return fmt.Errorf("close current file: %w", err)
		}
		fw.currentFile = nil
	}

	oldPath := fw.Path()
	timestamp := fw.now().Format("20060102-150405.000")
	newPath := fmt.Sprintf("%s.%s", oldPath, timestamp)
	if err := os.Rename(oldPath, newPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	fw.background.Add(1)
	go func() {
		defer fw.background.Done()
		compressFile(newPath)
		fw.cleanup()
	}()

	if err := fw.openFile(); err != nil {
		return err
	}
	fw.lastRotation = fw.now()
	return nil
}

func compressFile(path string) {
	gzPath := path + ".gz"
	in, err := os.Open(path)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(gzPath)
	if err != nil {
		return
	}
	gzWriter := gzip.NewWriter(out)
	_, copyErr := io.Copy(gzWriter, in)
	closeErr := gzWriter.Close()
	out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(gzPath)
		return
	}
	os.Remove(path)
}

// cleanup removes the oldest rotated files beyond MaxFiles.
func (fw *FileWriter) cleanup() {
	pattern := fw.Path() + ".*.gz"
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	// Rotated names embed a sortable timestamp.
	sort.Strings(matches)
	if len(matches) > fw.opts.MaxFiles {
		for _, path := range matches[:len(matches)-fw.opts.MaxFiles] {
			os.Remove(path)
		}
	}
}

// Close waits for pending compression and closes the live file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	var err error
	if fw.currentFile != nil {
		err = fw.currentFile.Close()
		fw.currentFile = nil
	}
	fw.mu.Unlock()
	fw.background.Wait()
	return err
}

// ReadRecent reads the most recent n log entries from logPath.
func ReadRecent(logPath string, n int) ([]Entry, error) {
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > 2*n {
			lines = append(lines[:0], lines[len(lines)-n:]...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue // console lines and partial writes
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

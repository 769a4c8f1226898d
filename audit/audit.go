// Package audit records the terminal outcome of every delivered item.
//
// Two append-only files receive one key per line: successes and failures.
// Appends are serialized per file so concurrent workers never interleave
// partial lines.
package audit

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// DefaultSuccessFile is the file name for successfully stored keys.
	DefaultSuccessFile = "success.out"
	// DefaultErrorFile is the file name for keys that failed delivery.
	DefaultErrorFile = "error.out"
)

// ErrClosed is returned when writing to a closed log.
var ErrClosed = errors.New("audit log is closed")

var keyEscaper = strings.NewReplacer("\\", "\\\\", "\n", "\\n", "\r", "\\r")

var keyUnescaper = strings.NewReplacer("\\\\", "\\", "\\n", "\n", "\\r", "\r")

// Log appends keys to the success and error files.
type Log struct {
	success *appender
	failure *appender
}

type appender struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (creating if needed) the two audit files in dir. Empty names
// select DefaultSuccessFile and DefaultErrorFile.
func Open(dir, successName, errorName string) (*Log, error) {
	if successName == "" {
		successName = DefaultSuccessFile
	}
	if errorName == "" {
		errorName = DefaultErrorFile
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}

	success, err := openAppender(filepath.Join(dir, successName))
	if err != nil {
		return nil, err
	}
	failure, err := openAppender(filepath.Join(dir, errorName))
	if err != nil {
		success.close()
		return nil, err
	}
	return &Log{success: success, failure: failure}, nil
}

func openAppender(path string) (*appender, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening audit file: %w", err)
	}
	return &appender{file: f}, nil
}

// Success records a key that reached the store.
func (l *Log) Success(key string) error {
	return l.success.append(key)
}

// Failure records a key that exhausted its retries or failed permanently.
func (l *Log) Failure(key string) error {
	return l.failure.append(key)
}

// Close closes both files.
func (l *Log) Close() error {
	return errors.Join(l.success.close(), l.failure.close())
}

func (a *appender) append(key string) error {
	line := keyEscaper.Replace(key) + "\n"

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return ErrClosed
	}
	_, err := a.file.WriteString(line)
	return err
}

func (a *appender) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// ReadKeys reads every key from an audit file, undoing line escaping.
func ReadKeys(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keys []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		keys = append(keys, keyUnescaper.Replace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

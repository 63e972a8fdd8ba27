package clip

import (
	"fmt"
	"sync"
)

// Memory is an in-process clipboard. Failures can be injected to exercise
// retry and backpressure paths.
type Memory struct {
	mu         sync.Mutex
	text       string
	failReads  int
	failWrites int
	reads      int
	writes     []string
}

// NewMemory returns an empty Memory clipboard.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "memory" }

// Read returns the buffer, or ErrUnavailable while injected read failures
// remain.
func (m *Memory) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.failReads > 0 {
		m.failReads--
		return "", fmt.Errorf("%w: injected read failure", ErrUnavailable)
	}
	return m.text, nil
}

// Write replaces the buffer and records the write.
func (m *Memory) Write(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites > 0 {
		m.failWrites--
		return fmt.Errorf("%w: injected write failure", ErrUnavailable)
	}
	m.text = text
	m.writes = append(m.writes, text)
	return nil
}

// Set simulates the user copying text: it replaces the buffer without
// recording a write.
func (m *Memory) Set(text string) {
	m.mu.Lock()
	m.text = text
	m.mu.Unlock()
}

// Text returns the buffer without counting as a read.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// FailReads makes the next n reads fail.
func (m *Memory) FailReads(n int) {
	m.mu.Lock()
	m.failReads = n
	m.mu.Unlock()
}

// FailWrites makes the next n writes fail.
func (m *Memory) FailWrites(n int) {
	m.mu.Lock()
	m.failWrites = n
	m.mu.Unlock()
}

// Reads returns the number of Read calls so far.
func (m *Memory) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Writes returns every successfully written value, oldest first.
func (m *Memory) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/spotclone/internal/models"
)

// MockProvider is a test double for [services.Provider] that counts calls.
type MockProvider struct {
	Provider  models.ProviderID
	Candidate *models.CandidateSource
	Err       error

	mu      sync.Mutex
	queries []string
}

func NewMockProvider(id models.ProviderID, candidate *models.CandidateSource, err error) *MockProvider {
	return &MockProvider{Provider: id, Candidate: candidate, Err: err}
}

func (m *MockProvider) Search(ctx context.Context, query string) (*models.CandidateSource, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	return m.Candidate, m.Err
}

func (m *MockProvider) ID() models.ProviderID { return m.Provider }
func (m *MockProvider) Name() string          { return "mock-" + string(m.Provider) }

// Calls returns how many times Search ran.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// Queries returns the queries passed to Search.
func (m *MockProvider) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// MockStrategy is a test double for [extract.Strategy] returning a fixed payload or error.
type MockStrategy struct {
	Name    string
	Payload []byte
	Err     error

	mu   sync.Mutex
	urls []string
}

func NewMockStrategy(name string, payload []byte, err error) *MockStrategy {
	return &MockStrategy{Name: name, Payload: payload, Err: err}
}

func (m *MockStrategy) ID() string { return m.Name }

func (m *MockStrategy) Extract(ctx context.Context, sourceURL string) ([]byte, error) {
	m.mu.Lock()
	m.urls = append(m.urls, sourceURL)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Payload, nil
}

// Calls returns how many times Extract ran.
func (m *MockStrategy) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.urls)
}

// URLs returns the source URLs passed to Extract.
func (m *MockStrategy) URLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.urls...)
}

// MockStreamer is a test double for [extract.Streamer].
//
// With Block set, Stream returns a [BlockingReader] that never yields data.
type MockStreamer struct {
	Data  []byte
	Err   error
	Block bool

	mu      sync.Mutex
	calls   int
	readers []*BlockingReader
}

func (m *MockStreamer) Stream(ctx context.Context, sourceURL string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Block {
		r := NewBlockingReader()
		m.readers = append(m.readers, r)
		return r, nil
	}
	return io.NopCloser(bytes.NewReader(m.Data)), nil
}

func (m *MockStreamer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Readers returns the blocking readers handed out so far.
func (m *MockStreamer) Readers() []*BlockingReader {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*BlockingReader(nil), m.readers...)
}

// BlockingReader blocks every Read until Close is called.
type BlockingReader struct {
	closed chan struct{}
	once   sync.Once
}

func NewBlockingReader() *BlockingReader {
	return &BlockingReader{closed: make(chan struct{})}
}

func (b *BlockingReader) Read(p []byte) (int, error) {
	<-b.closed
	return 0, io.ErrClosedPipe
}

func (b *BlockingReader) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

// Closed reports whether Close has been called.
func (b *BlockingReader) Closed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

// Payload returns n bytes of filler audio.
func Payload(n int) []byte {
	return bytes.Repeat([]byte{0xff}, n)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

package gonitf

import (
	"fmt"
	"io"
	"sync"

	"github.com/valyala/fasthttp"
)

// Default read-ahead buffer size (64KB); block row spans of one segment are
// usually adjacent, so one fetch serves many of them.
const defaultReadAheadSize = 64 * 1024

// HTTPRangeReader implements io.ReaderAt for containers served over HTTP
// using range requests. The most recent fetch is kept as a read-ahead
// window.
type HTTPRangeReader struct {
	url    string
	client *fasthttp.Client
	size   int64
	mu     sync.Mutex

	// Read-ahead buffer
	buffer        []byte
	bufferStart   int64 // Start position of buffer in file
	bufferEnd     int64 // End position of buffer in file (exclusive)
	readAheadSize int
}

// NewHTTPRangeReader creates a new HTTP range reader
func NewHTTPRangeReader(url string, client *fasthttp.Client) *HTTPRangeReader {
	rr := &HTTPRangeReader{
		url:           url,
		client:        client,
		readAheadSize: defaultReadAheadSize,
		bufferStart:   -1,
		bufferEnd:     -1,
	}

	rr.size = rr.getSize()

	return rr
}

// SetReadAheadSize sets the read-ahead buffer size
// Larger values cut the number of requests but use more memory
func (rr *HTTPRangeReader) SetReadAheadSize(size int) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if size > 0 {
		rr.readAheadSize = size
	}
}

// getSize gets the file size using HEAD request
func (rr *HTTPRangeReader) getSize() int64 {
	if rr.client == nil {
		return -1
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rr.url)
	req.Header.SetMethod(fasthttp.MethodHead)

	if err := rr.client.Do(req, resp); err != nil {
		return -1
	}

	contentLength := resp.Header.ContentLength()
	if contentLength > 0 {
		return int64(contentLength)
	}

	return -1
}

// ReadAt reads len(p) bytes starting at off. It is safe for concurrent use.
func (rr *HTTPRangeReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset: %d", off)
	}
	if len(p) == 0 {
		return 0, nil
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.size >= 0 && off >= rr.size {
		return 0, io.EOF
	}

	toRead := int64(len(p))
	if rr.size >= 0 && off+toRead > rr.size {
		toRead = rr.size - off
	}

	// Serve from the read-ahead window when it covers the request
	if rr.buffer != nil && off >= rr.bufferStart && off+toRead <= rr.bufferEnd {
		n := copy(p[:toRead], rr.buffer[off-rr.bufferStart:])
		return n, rr.eofAfter(n, p)
	}

	readSize := int64(rr.readAheadSize)
	if readSize < toRead {
		readSize = toRead
	}
	if rr.size >= 0 && off+readSize > rr.size {
		readSize = rr.size - off
	}

	data, err := rr.fetchRange(off, off+readSize-1)
	if err != nil {
		return 0, err
	}

	if cap(rr.buffer) >= len(data) {
		rr.buffer = rr.buffer[:len(data)]
	} else {
		rr.buffer = make([]byte, len(data))
	}
	copy(rr.buffer, data)
	rr.bufferStart = off
	rr.bufferEnd = off + int64(len(data))

	n := copy(p[:toRead], data)
	if n == 0 {
		return 0, io.EOF
	}
	return n, rr.eofAfter(n, p)
}

// eofAfter reports io.EOF for a short read, as io.ReaderAt requires.
func (rr *HTTPRangeReader) eofAfter(n int, p []byte) error {
	if n < len(p) {
		return io.EOF
	}
	return nil
}

// fetchRange fetches a byte range from the server
func (rr *HTTPRangeReader) fetchRange(start, end int64) ([]byte, error) {
	if rr.size > 0 && end >= rr.size {
		end = rr.size - 1
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rr.url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	if err := rr.client.Do(req, resp); err != nil {
		return nil, err
	}

	statusCode := resp.StatusCode()
	switch statusCode {
	case fasthttp.StatusPartialContent:
	case fasthttp.StatusOK:
		// Server ignored the range and sent the whole file
		body := resp.Body()
		if start >= int64(len(body)) {
			return nil, io.EOF
		}
		if end >= int64(len(body)) {
			end = int64(len(body)) - 1
		}
		return append([]byte(nil), body[start:end+1]...), nil
	default:
		return nil, fmt.Errorf("unexpected status code: %d", statusCode)
	}

	// Copy body since response will be released
	body := resp.Body()
	result := make([]byte, len(body))
	copy(result, body)

	return result, nil
}

// ClearBuffer clears the read-ahead buffer to free memory
func (rr *HTTPRangeReader) ClearBuffer() {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.buffer = nil
	rr.bufferStart = -1
	rr.bufferEnd = -1
}

// Size returns the file size, or -1 if unknown
func (rr *HTTPRangeReader) Size() int64 {
	return rr.size
}

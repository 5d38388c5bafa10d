// Package convert turns stored binary content into plain-text streams
// for full-text indexing. Converters are looked up by mime type; unknown
// types fail with ErrUnsupported, which the indexing pipeline treats as
// "index metadata only".
package convert

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/contentdex/contentdex/internal/errors"
)

// ErrUnsupported reports that no converter claims the mime type.
var ErrUnsupported = errors.New(errors.ErrCodeConversion, "unsupported mime type")

// Converter produces a plain-text stream for one family of mime types.
type Converter interface {
	// Convert opens the file at path and returns a reader over its
	// plain-text rendition. The caller closes the reader.
	Convert(path string) (io.ReadCloser, error)
}

// Registry resolves converters by mime type. Exact entries win over
// prefix entries ("text/" claims every text subtype).
type Registry struct {
	exact  map[string]Converter
	prefix map[string]Converter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		exact:  make(map[string]Converter),
		prefix: make(map[string]Converter),
	}
}

// DefaultRegistry covers the built-in conversions: plain text passes
// through, HTML is stripped to text, gzip variants decompress first.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("text/html", &HTMLConverter{})
	r.Register("application/xhtml+xml", &HTMLConverter{})
	r.Register("application/gzip", &GzipConverter{Next: &TextConverter{}})
	r.Register("application/x-gzip", &GzipConverter{Next: &TextConverter{}})
	r.RegisterPrefix("text/", &TextConverter{})
	return r
}

// Register binds an exact mime type to a converter.
func (r *Registry) Register(mime string, c Converter) {
	r.exact[strings.ToLower(mime)] = c
}

// RegisterPrefix binds a mime-type prefix to a converter.
func (r *Registry) RegisterPrefix(prefix string, c Converter) {
	r.prefix[strings.ToLower(prefix)] = c
}

// Convert resolves mime to a converter and runs it over path. The mime
// parameter may carry parameters ("text/plain; charset=utf-8").
func (r *Registry) Convert(path, mime string) (io.ReadCloser, error) {
	mime = strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))

	if c, ok := r.exact[mime]; ok {
		return c.Convert(path)
	}
	for prefix, c := range r.prefix {
		if strings.HasPrefix(mime, prefix) {
			return c.Convert(path)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, mime)
}

// TextConverter passes plain text through unchanged.
type TextConverter struct{}

// Convert implements Converter.
func (TextConverter) Convert(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// GzipConverter decompresses, then hands the stream to Next.
type GzipConverter struct {
	Next Converter
}

// Convert implements Converter.
func (g GzipConverter) Convert(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("gzip %s: %w", path, err)
	}
	return &gzipReadCloser{Reader: zr, file: f}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Close() error {
	zerr := g.Reader.Close()
	ferr := g.file.Close()
	if zerr != nil {
		return zerr
	}
	return ferr
}

// HTMLConverter strips tags, scripts and styles, leaving the visible
// text with whitespace between elements.
type HTMLConverter struct{}

// Convert implements Converter.
func (HTMLConverter) Convert(path string) (io.ReadCloser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return io.NopCloser(strings.NewReader(stripHTML(string(data)))), nil
}

// stripHTML removes markup with a small state machine. It skips the
// contents of script and style elements entirely.
func stripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inTag := false
	skipUntil := "" // closing tag whose content is dropped
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case skipUntil != "":
			if c == '<' && hasFoldPrefix(s[i:], skipUntil) {
				i += len(skipUntil)
				skipUntil = ""
				inTag = true
				continue
			}
			i++
		case c == '<':
			if hasFoldPrefix(s[i:], "<script") {
				skipUntil = "</script"
			} else if hasFoldPrefix(s[i:], "<style") {
				skipUntil = "</style"
			}
			inTag = true
			i++
		case c == '>':
			if inTag {
				inTag = false
				b.WriteByte(' ')
			}
			i++
		case inTag:
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// ReadChunks streams r in fixed-size chunks, invoking fn for each one.
// The final chunk may be short.
func ReadChunks(r io.Reader, size int, fn func(chunk string) error) error {
	br := bufio.NewReaderSize(r, size)
	buf := make([]byte, size)
	for {
		n, err := io.ReadFull(br, buf)
		if n > 0 {
			if cbErr := fn(string(buf[:n])); cbErr != nil {
				return cbErr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read chunk: %w", err)
		}
	}
}

// Package filetype classifies byte streams into the gateway's
// canonical type codes.
//
// Classification runs an ordered probe chain over a seekable stream:
// each probe receives a fixed-size head buffer plus full stream access,
// and the first non-nil answer wins. Ordering encodes priority: the
// magic-signature probe runs before the CSV probe because a
// false-positive CSV match on a binary file is far more likely than a
// false-positive magic-byte match. When no probe matches, inspection
// fails hard with blobgate.ErrUnrecognizedType: the client-declared
// content type is deliberately never used as a fallback for storage or
// security decisions.
package filetype

import (
	"context"
	"fmt"
	"io"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

// Options tune probe behavior. The zero value is not usable; use
// DefaultOptions.
type Options struct {
	// HeadBytes is the size of the head buffer handed to every probe.
	HeadBytes int
	// CSVSampleBytes bounds the window the CSV probe parses.
	CSVSampleBytes int
	// CSVMinRows is the minimum number of stable data rows required.
	CSVMinRows int
	// CSVMinCols is the minimum column count required.
	CSVMinCols int
	// MaxControlCharRatio is the highest tolerated ratio of control
	// bytes in the head for content to still look like text.
	MaxControlCharRatio float64
	// CSVDelimiters are the candidate delimiters, tried in order.
	CSVDelimiters []rune
}

// DefaultOptions returns the tuning used in production.
func DefaultOptions() Options {
	return Options{
		HeadBytes:           560,
		CSVSampleBytes:      64 * 1024,
		CSVMinRows:          3,
		CSVMinCols:          2,
		MaxControlCharRatio: 0.02,
		CSVDelimiters:       []rune{',', ';', '\t', '|'},
	}
}

// Probe is one detection strategy. It returns the detected type code,
// ok=false when the probe does not recognize the content, or an error
// only for I/O failures (an unrecognized stream is not an error at the
// probe level).
type Probe interface {
	Detect(ctx context.Context, content io.ReadSeeker, fileName, declaredMime string, head []byte, opts Options) (code blobgate.TypeCode, ok bool, err error)
}

// Inspector runs probes in order and returns the first match.
type Inspector struct {
	probes []Probe
	opts   Options
}

// NewInspector creates an inspector with the default probe chain:
// magic signatures first, then CSV structure.
func NewInspector() *Inspector {
	return NewInspectorWith(DefaultOptions(), &MagicProbe{}, &CSVProbe{})
}

// NewInspectorWith creates an inspector with explicit options and
// probes, in priority order.
func NewInspectorWith(opts Options, probes ...Probe) *Inspector {
	return &Inspector{probes: probes, opts: opts}
}

// Inspect classifies the stream. The stream is rewound to its current
// position before each probe and left at that position on return.
func (i *Inspector) Inspect(ctx context.Context, content io.ReadSeeker, fileName, declaredMime string) (blobgate.TypeCode, error) {
	origin, err := content.Seek(0, io.SeekCurrent)
	if err != nil {
		return blobgate.TypeUnknown, fmt.Errorf("filetype: seek: %w", err)
	}

	head := make([]byte, i.opts.HeadBytes)
	n, err := io.ReadFull(content, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return blobgate.TypeUnknown, fmt.Errorf("filetype: read head: %w", err)
	}
	head = head[:n]

	for _, p := range i.probes {
		if err := ctx.Err(); err != nil {
			return blobgate.TypeUnknown, err
		}
		if _, err := content.Seek(origin, io.SeekStart); err != nil {
			return blobgate.TypeUnknown, fmt.Errorf("filetype: rewind: %w", err)
		}
		code, ok, err := p.Detect(ctx, content, fileName, declaredMime, head, i.opts)
		if err != nil {
			return blobgate.TypeUnknown, err
		}
		if ok {
			if _, err := content.Seek(origin, io.SeekStart); err != nil {
				return blobgate.TypeUnknown, fmt.Errorf("filetype: rewind: %w", err)
			}
			return code, nil
		}
	}

	if _, err := content.Seek(origin, io.SeekStart); err != nil {
		return blobgate.TypeUnknown, fmt.Errorf("filetype: rewind: %w", err)
	}
	return blobgate.TypeUnknown, blobgate.ErrUnrecognizedType
}

package filetype

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

// MagicProbe matches leading bytes against known container signatures.
// ZIP containers are disambiguated from OOXML documents by peeking the
// archive directory for the well-known internal folder markers.
type MagicProbe struct{}

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func (p *MagicProbe) Detect(ctx context.Context, content io.ReadSeeker, fileName, declaredMime string, head []byte, opts Options) (blobgate.TypeCode, bool, error) {
	switch {
	case bytes.HasPrefix(head, []byte("%PDF")):
		return blobgate.TypePDF, true, nil
	case bytes.HasPrefix(head, pngSignature):
		return blobgate.TypePNG, true, nil
	case bytes.HasPrefix(head, []byte{0xFF, 0xD8, 0xFF}):
		return blobgate.TypeJPEG, true, nil
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		return p.classifyZip(content, fileName)
	}
	return blobgate.TypeUnknown, false, nil
}

// classifyZip reads the archive directory to tell plain ZIP from OOXML
// spreadsheets and documents. An unreadable archive still counts as
// ZIP: the signature already matched.
func (p *MagicProbe) classifyZip(content io.ReadSeeker, fileName string) (blobgate.TypeCode, bool, error) {
	size, err := content.Seek(0, io.SeekEnd)
	if err != nil {
		return blobgate.TypeUnknown, false, err
	}
	ra, ok := content.(io.ReaderAt)
	if !ok {
		return blobgate.TypeZIP, true, nil
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return blobgate.TypeZIP, true, nil
	}

	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "xl/") {
			return blobgate.TypeXLSX, true, nil
		}
		if strings.HasPrefix(f.Name, "word/") {
			return blobgate.TypeDOCX, true, nil
		}
	}

	// Some producers write the [Content_Types].xml marker without the
	// payload folders up front; fall back to the extension.
	switch strings.ToLower(path.Ext(fileName)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return blobgate.TypeXLSX, true, nil
	case ".docx":
		return blobgate.TypeDOCX, true, nil
	}
	return blobgate.TypeZIP, true, nil
}

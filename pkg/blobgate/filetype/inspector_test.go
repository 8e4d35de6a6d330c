package filetype_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobgate/blobgate/pkg/blobgate"
	"github.com/blobgate/blobgate/pkg/blobgate/filetype"
)

func zipWithEntries(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("payload"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestInspectMagicSignatures(t *testing.T) {
	insp := filetype.NewInspector()
	ctx := context.Background()

	tests := []struct {
		name     string
		content  []byte
		fileName string
		declared string
		want     blobgate.TypeCode
	}{
		{
			name:     "pdf magic beats csv filename and declared type",
			content:  []byte("%PDF-1.7\nsome pdf body"),
			fileName: "data.csv",
			declared: "text/csv",
			want:     blobgate.TypePDF,
		},
		{
			name:    "png signature",
			content: append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, []byte("chunks")...),
			want:    blobgate.TypePNG,
		},
		{
			name:    "jpeg signature",
			content: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10},
			want:    blobgate.TypeJPEG,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := insp.Inspect(ctx, bytes.NewReader(tt.content), tt.fileName, tt.declared)
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestInspectZipContainers(t *testing.T) {
	insp := filetype.NewInspector()
	ctx := context.Background()

	t.Run("xlsx by internal folder", func(t *testing.T) {
		data := zipWithEntries(t, "[Content_Types].xml", "xl/workbook.xml")
		code, err := insp.Inspect(ctx, bytes.NewReader(data), "upload.bin", "")
		require.NoError(t, err)
		assert.Equal(t, blobgate.TypeXLSX, code)
	})

	t.Run("docx by internal folder", func(t *testing.T) {
		data := zipWithEntries(t, "[Content_Types].xml", "word/document.xml")
		code, err := insp.Inspect(ctx, bytes.NewReader(data), "upload.bin", "")
		require.NoError(t, err)
		assert.Equal(t, blobgate.TypeDOCX, code)
	})

	t.Run("plain zip", func(t *testing.T) {
		data := zipWithEntries(t, "readme.txt", "photos/a.jpg")
		code, err := insp.Inspect(ctx, bytes.NewReader(data), "archive.zip", "")
		require.NoError(t, err)
		assert.Equal(t, blobgate.TypeZIP, code)
	})

	t.Run("ambiguous zip falls back to extension", func(t *testing.T) {
		data := zipWithEntries(t, "[Content_Types].xml")
		code, err := insp.Inspect(ctx, bytes.NewReader(data), "sheet.xlsx", "")
		require.NoError(t, err)
		assert.Equal(t, blobgate.TypeXLSX, code)
	})
}

func TestInspectCSV(t *testing.T) {
	insp := filetype.NewInspector()
	ctx := context.Background()

	t.Run("comma separated", func(t *testing.T) {
		content := "name,amount,date\na,1,x\nb,2,y\nc,3,z\n"
		code, err := insp.Inspect(ctx, strings.NewReader(content), "data.csv", "")
		require.NoError(t, err)
		assert.Equal(t, blobgate.TypeCSV, code)
	})

	t.Run("semicolon separated", func(t *testing.T) {
		content := "name;amount\na;1\nb;2\nc;3\n"
		code, err := insp.Inspect(ctx, strings.NewReader(content), "data.csv", "")
		require.NoError(t, err)
		assert.Equal(t, blobgate.TypeCSV, code)
	})

	t.Run("text content without csv hints still accepted", func(t *testing.T) {
		content := "col1|col2|col3\n1|2|3\n4|5|6\n7|8|9\n"
		code, err := insp.Inspect(ctx, strings.NewReader(content), "export.dat", "")
		require.NoError(t, err)
		assert.Equal(t, blobgate.TypeCSV, code)
	})

	t.Run("inconsistent column count rejected", func(t *testing.T) {
		content := "a,b,c\n1,2\n3,4,5,6\n7,8,9\n"
		_, err := insp.Inspect(ctx, strings.NewReader(content), "data.csv", "")
		assert.ErrorIs(t, err, blobgate.ErrUnrecognizedType)
	})

	t.Run("too few rows rejected", func(t *testing.T) {
		content := "a,b,c\n1,2,3\n"
		_, err := insp.Inspect(ctx, strings.NewReader(content), "data.csv", "")
		assert.ErrorIs(t, err, blobgate.ErrUnrecognizedType)
	})

	t.Run("single column rejected", func(t *testing.T) {
		content := "word\none\ntwo\nthree\nfour\n"
		_, err := insp.Inspect(ctx, strings.NewReader(content), "data.csv", "")
		assert.ErrorIs(t, err, blobgate.ErrUnrecognizedType)
	})

	t.Run("binary content with csv name rejected", func(t *testing.T) {
		content := []byte{0x00, 0x01, 0x02, ',', 0x04, 0x05}
		_, err := insp.Inspect(ctx, bytes.NewReader(content), "data.csv", "text/csv")
		assert.ErrorIs(t, err, blobgate.ErrUnrecognizedType)
	})
}

func TestInspectRewindsStream(t *testing.T) {
	insp := filetype.NewInspector()
	ctx := context.Background()

	content := "name,amount\na,1\nb,2\nc,3\n"
	r := strings.NewReader(content)

	_, err := insp.Inspect(ctx, r, "data.csv", "")
	require.NoError(t, err)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, string(rest))
}

func TestInspectUnrecognized(t *testing.T) {
	insp := filetype.NewInspector()
	ctx := context.Background()

	_, err := insp.Inspect(ctx, bytes.NewReader([]byte{0x7F, 'E', 'L', 'F', 0x02, 0x01}), "tool", "")
	assert.ErrorIs(t, err, blobgate.ErrUnrecognizedType)
}

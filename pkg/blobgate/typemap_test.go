package blobgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeCodeMapping(t *testing.T) {
	assert.Equal(t, "application/pdf", TypePDF.ContentType())
	assert.Equal(t, "pdf", TypePDF.PreferredExtension())
	assert.Equal(t, "application/octet-stream", TypeUnknown.ContentType())
	assert.Equal(t, "", TypeUnknown.PreferredExtension())
	assert.Equal(t, "application/octet-stream", TypeCode(42).ContentType())

	assert.Equal(t, TypeCSV, TypeCodeForMime("text/csv"))
	assert.Equal(t, TypeCSV, TypeCodeForMime(" TEXT/CSV "))
	assert.Equal(t, TypeUnknown, TypeCodeForMime("application/x-whatever"))

	assert.Equal(t, TypeJPEG, TypeCodeForExtension("jpeg"))
	assert.Equal(t, TypeJPEG, TypeCodeForExtension(".jpg"))
	assert.Equal(t, TypeUnknown, TypeCodeForExtension("exe"))
}

func TestDeriveLegacyType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		code        TypeCode
		ext         string
		wantMime    string
		wantExt     string
	}{
		{
			name:        "content type wins over everything",
			contentType: "application/pdf",
			code:        TypePNG,
			ext:         "csv",
			wantMime:    "application/pdf",
			wantExt:     "pdf",
		},
		{
			name:     "numeric code when content type unknown",
			code:     TypeXLSX,
			ext:      "csv",
			wantMime: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			wantExt:  "xlsx",
		},
		{
			name:     "extension when code unknown",
			code:     TypeUnknown,
			ext:      ".JPG",
			wantMime: "image/jpeg",
			wantExt:  "jpg",
		},
		{
			name:     "unmapped extension kept with binary mime",
			ext:      "dwg",
			wantMime: "application/octet-stream",
			wantExt:  "dwg",
		},
		{
			name:     "nothing known falls back to bin",
			wantMime: "application/octet-stream",
			wantExt:  "bin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, ext := DeriveLegacyType(tt.contentType, tt.code, tt.ext)
			assert.Equal(t, tt.wantMime, mime)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

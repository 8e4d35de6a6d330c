package blobgate

import "strings"

// TypeCode is the system's canonical short code for a content type.
// The numeric values are persisted (SMALLINT) in the documents table
// and the migration ledger; keep them in sync with the DB enum mapping.
type TypeCode int16

const (
	TypeUnknown TypeCode = 0
	TypePDF     TypeCode = 1
	TypePNG     TypeCode = 2
	TypeJPEG    TypeCode = 3
	TypeZIP     TypeCode = 4
	TypeCSV     TypeCode = 5
	TypeXLSX    TypeCode = 6
	TypeDOCX    TypeCode = 7
	TypeTXT     TypeCode = 8
	TypeJSON    TypeCode = 9
)

var typeToMime = map[TypeCode]string{
	TypePDF:  "application/pdf",
	TypePNG:  "image/png",
	TypeJPEG: "image/jpeg",
	TypeZIP:  "application/zip",
	TypeCSV:  "text/csv",
	TypeXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	TypeDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	TypeTXT:  "text/plain",
	TypeJSON: "application/json",
}

var mimeToType = map[string]TypeCode{
	"application/pdf": TypePDF,
	"image/png":       TypePNG,
	"image/jpeg":      TypeJPEG,
	"application/zip": TypeZIP,
	"text/csv":        TypeCSV,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":   TypeXLSX,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": TypeDOCX,
	"text/plain":       TypeTXT,
	"application/json": TypeJSON,
}

var typeToExt = map[TypeCode]string{
	TypePDF:  "pdf",
	TypePNG:  "png",
	TypeJPEG: "jpg",
	TypeZIP:  "zip",
	TypeCSV:  "csv",
	TypeXLSX: "xlsx",
	TypeDOCX: "docx",
	TypeTXT:  "txt",
	TypeJSON: "json",
}

var extToType = map[string]TypeCode{
	"pdf":  TypePDF,
	"png":  TypePNG,
	"jpg":  TypeJPEG,
	"jpeg": TypeJPEG,
	"zip":  TypeZIP,
	"csv":  TypeCSV,
	"xlsx": TypeXLSX,
	"docx": TypeDOCX,
	"txt":  TypeTXT,
	"json": TypeJSON,
}

// ContentType returns the canonical MIME string for a type code.
// Unknown codes map to application/octet-stream.
func (t TypeCode) ContentType() string {
	if mime, ok := typeToMime[t]; ok {
		return mime
	}
	return "application/octet-stream"
}

// PreferredExtension returns the canonical file extension (no dot) for
// a type code, or "" when the code has no preferred extension.
func (t TypeCode) PreferredExtension() string {
	return typeToExt[t]
}

// TypeCodeForMime maps a MIME string to its type code, or TypeUnknown.
func TypeCodeForMime(mime string) TypeCode {
	return mimeToType[strings.ToLower(strings.TrimSpace(mime))]
}

// TypeCodeForExtension maps a file extension (with or without leading
// dot) to its type code, or TypeUnknown.
func TypeCodeForExtension(ext string) TypeCode {
	return extToType[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))]
}

// DeriveLegacyType derives the canonical (MIME, extension) pair for a
// legacy record: the stored content type wins, then the legacy numeric
// type code, then the stored extension, else the binary default. This
// is the migration-side counterpart of the upload inspector.
func DeriveLegacyType(contentType string, code TypeCode, ext string) (string, string) {
	if t := TypeCodeForMime(contentType); t != TypeUnknown {
		return t.ContentType(), t.PreferredExtension()
	}
	if _, ok := typeToMime[code]; ok {
		return code.ContentType(), code.PreferredExtension()
	}
	if t := TypeCodeForExtension(ext); t != TypeUnknown {
		return t.ContentType(), t.PreferredExtension()
	}
	if e := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), ".")); e != "" {
		return "application/octet-stream", e
	}
	return "application/octet-stream", "bin"
}

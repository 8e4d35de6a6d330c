package blobgate

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// stagedContent is a seekable view of upload content with its
// authoritative length. Close releases any temporary file on every
// exit path, success or failure.
type stagedContent struct {
	io.ReadSeeker
	size    int64
	cleanup func()
}

// ReadAt delegates to the underlying stream when it supports random
// access (os.File and bytes.Reader both do); the type inspector uses
// it to walk ZIP directories without disturbing the read position.
func (s *stagedContent) ReadAt(p []byte, off int64) (int, error) {
	if ra, ok := s.ReadSeeker.(io.ReaderAt); ok {
		return ra.ReadAt(p, off)
	}
	return 0, fmt.Errorf("staged content does not support random access")
}

func (s *stagedContent) Close() error {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
	return nil
}

// stageContent makes upload content seekable for type detection and
// measures its true length. Seekable input is rewound and measured in
// place; anything else is copied to a temporary file that is removed on
// Close. Caller-declared lengths are never trusted.
func stageContent(r io.Reader) (*stagedContent, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		size, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, fmt.Errorf("measure content: %w", err)
		}
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind content: %w", err)
		}
		return &stagedContent{ReadSeeker: rs, size: size}, nil
	}

	f, err := os.CreateTemp("", "upload-"+uuid.NewString()+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}

	size, err := io.Copy(f, r)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("stage content: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, fmt.Errorf("rewind staging file: %w", err)
	}

	return &stagedContent{ReadSeeker: f, size: size, cleanup: cleanup}, nil
}

package validators

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Source is the byte source every upload goes through. It must know its exact
// size before anything is read and it must support being read more than once:
// validation, metadata extraction and the blob write each take their own
// reader from it with Reader, so no consumer ever has to rewind.
//
// *bytes.Reader, *strings.Reader and *io.SectionReader all satisfy Source.
type Source interface {
	io.ReaderAt
	Size() int64
}

// Reader returns an independent reader over the whole source
func Reader(src Source) io.Reader {
	return io.NewSectionReader(src, 0, src.Size())
}

// Section wraps a random access reader with a known size, e.g. a multipart.File
// together with its FileHeader.Size
func Section(r io.ReaderAt, size int64) Source {
	return io.NewSectionReader(r, 0, size)
}

// Spooled is a one-shot stream copied to a temporary file so it can be read
// more than once. Close removes the temporary file.
type Spooled struct {
	f    *os.File
	size int64
}

// Spool copies r to a temporary file. At most limit+1 bytes are copied so a
// stream bigger than limit reports a size of limit+1 instead of filling the
// disk; the hard size limit check rejects it afterwards. A limit <= 0 disables
// the cap.
func Spool(r io.Reader, limit int64) (*Spooled, error) {
	f, err := os.CreateTemp("", "upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file, %w", err)
	}

	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to copy data to temporary file, %w", err)
	}

	return &Spooled{f: f, size: n}, nil
}

func (s *Spooled) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *Spooled) Size() int64 {
	return s.size
}

func (s *Spooled) Close() error {
	err := s.f.Close()
	if rmErr := os.Remove(s.f.Name()); rmErr != nil && !os.IsNotExist(rmErr) {
		return errors.Join(err, rmErr)
	}

	return err
}

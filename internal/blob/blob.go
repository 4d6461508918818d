package blob

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// InlineThreshold is the largest payload kept inline in the database row.
// Anything bigger spills to a file under the data directory.
const InlineThreshold = 256 * 1024

const uploadsDir = "uploads"

// A Location describes where a payload ended up. Exactly one of Inline or
// Path is set when a payload exists.
type Location struct {
	Inline []byte
	Path   string // relative to the data directory
	Size   int64
}

// A Store persists item payloads, inline up to InlineThreshold and on disk
// past it. Disk I/O happens outside any database critical section.
type Store struct {
	root      string
	threshold int64
	logger    logrus.FieldLogger
}

// NewStore returns a store rooted at the given data directory, creating the
// uploads subdirectory if needed.
func NewStore(root string, logger logrus.FieldLogger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, uploadsDir), 0o755); err != nil {
		return nil, errors.Wrap(err, "could not create uploads directory")
	}

	return &Store{
		root:      root,
		threshold: InlineThreshold,
		logger:    logger,
	}, nil
}

// Store consumes the reader and returns the payload's final location.
//
// Bytes are buffered in memory while the running total stays at or below the
// threshold. The first byte past it triggers a one-way transition: a file
// named after a fresh random identifier (keeping the original extension) is
// opened, the buffered prefix is flushed to it, and every later chunk goes
// straight to disk.
func (s *Store) Store(r io.Reader, name string) (Location, error) {
	var (
		buffer bytes.Buffer
		file   *os.File
		rel    string
		total  int64
		err    error
	)

	chunk := make([]byte, 32<<10)
	for {
		n, rerr := r.Read(chunk)
		if n > 0 {
			total += int64(n)
			if file == nil && total <= s.threshold {
				buffer.Write(chunk[:n])
			} else {
				if file == nil {
					rel, file, err = s.spill(name, buffer.Bytes())
					if err != nil {
						return Location{}, err
					}
				}
				if _, werr := file.Write(chunk[:n]); werr != nil {
					file.Close()
					return Location{}, errors.Wrap(werr, "could not write upload")
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if file != nil {
				file.Close()
			}
			return Location{}, errors.Wrap(rerr, "could not read upload")
		}
	}

	if file != nil {
		if err := file.Close(); err != nil {
			return Location{}, errors.Wrap(err, "could not close upload file")
		}
		return Location{Path: rel, Size: total}, nil
	}
	return Location{Inline: buffer.Bytes(), Size: total}, nil
}

func (s *Store) spill(name string, prefix []byte) (string, *os.File, error) {
	gen := uuid.Must(uuid.NewV4()).String()
	if ext := filepath.Ext(name); ext != "" {
		gen += ext
	}

	rel := filepath.Join(uploadsDir, gen)
	file, err := os.Create(filepath.Join(s.root, rel))
	if err != nil {
		return "", nil, errors.Wrap(err, "could not open upload file")
	}

	if len(prefix) > 0 {
		if _, err := file.Write(prefix); err != nil {
			file.Close()
			return "", nil, errors.Wrap(err, "could not flush buffered upload")
		}
	}
	return rel, file, nil
}

// Open returns a reader over the payload at the given location.
func (s *Store) Open(loc Location) (io.ReadCloser, error) {
	if loc.Path == "" {
		return io.NopCloser(bytes.NewReader(loc.Inline)), nil
	}

	file, err := os.Open(filepath.Join(s.root, loc.Path))
	return file, errors.Wrap(err, "could not open blob")
}

// Remove deletes the on-disk payload, if any. Best-effort: a failed unlink is
// logged and never propagates, so the row deletion always wins and the only
// possible orphan is a file with no row.
func (s *Store) Remove(loc Location) {
	if loc.Path == "" {
		return
	}

	if err := os.Remove(filepath.Join(s.root, loc.Path)); err != nil && !os.IsNotExist(err) {
		s.logger.WithError(err).WithField("path", loc.Path).Warn("could not remove blob")
	}
}

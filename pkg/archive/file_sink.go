package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes payloads below a local directory.
type FileSink struct {
	dir   string
	codec Codec
}

// NewFileSink creates a sink rooted at dir.
func NewFileSink(dir string, codec Codec) *FileSink {
	return &FileSink{dir: dir, codec: codec}
}

// Put writes body to dir/key plus the codec extension.
func (s *FileSink) Put(ctx context.Context, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := s.codec.Encode(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	path := filepath.Join(s.dir, filepath.FromSlash(key)+s.codec.Extension())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("write archive file: %w", err)
	}
	return nil
}

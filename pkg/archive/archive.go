// Package archive stores raw provider payloads next to the warehouse load.
//
// Sources hand every raw response body to a Sink before mapping it, so a
// run can be audited or replayed from the exact bytes the provider sent.
package archive

import (
	"context"
	"path"
	"strings"

	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/logger"
)

// Sink stores an object under key.
type Sink interface {
	Put(ctx context.Context, key string, body []byte) error
}

// New builds the sink described by cfg. It returns nil when archiving is disabled.
func New(ctx context.Context, cfg config.ArchiveConfig) (Sink, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	codec, err := ParseCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case "file":
		return NewFileSink(cfg.Dir, codec), nil
	case "s3":
		sink, err := NewS3Sink(ctx, S3Config{
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		}, codec)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, errors.Newf(errors.KindConfig, "unknown archive kind %q", cfg.Kind)
	}
}

// Key builds the object key for one payload of a source within the current run.
func Key(ctx context.Context, source, name string) string {
	runID, _ := ctx.Value(logger.RunIDKey).(string)
	if runID == "" {
		runID = "adhoc"
	}
	return path.Join(sanitize(source), runID, sanitize(name)+".json")
}

// Store puts body into sink under Key(ctx, source, name). A nil sink is a no-op.
func Store(ctx context.Context, sink Sink, source, name string, body []byte) error {
	if sink == nil {
		return nil
	}
	if err := sink.Put(ctx, Key(ctx, source, name), body); err != nil {
		return errors.Wrap(err, errors.KindStorage, "failed to archive raw payload").
			WithDetail("source", source).
			WithDetail("name", name)
	}
	return nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gdi/pkg/config"
	gdierrors "github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/logger"
)

var payload = []byte(`[{"page":1,"pages":1},[{"date":"2023","value":45000.5}]]`)

func TestKey(t *testing.T) {
	ctx := logger.ContextWithRunID(context.Background(), "run-42")
	assert.Equal(t, "worldbank/run-42/FRA_NY.GDP.PCAP.CD_p1.json", Key(ctx, "worldbank", "FRA/NY.GDP.PCAP.CD p1"))
	assert.Equal(t, "market/adhoc/SPY.json", Key(context.Background(), "market", "SPY"))
}

func TestCodec_EncodeDecode(t *testing.T) {
	for _, c := range []Codec{CodecNone, CodecZstd, CodecLZ4} {
		t.Run(string(c), func(t *testing.T) {
			enc, err := c.Encode(payload)
			require.NoError(t, err)
			dec, err := c.Decode(enc)
			require.NoError(t, err)
			assert.Equal(t, payload, dec)
		})
	}
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecNone, c)

	_, err = ParseCodec("brotli")
	require.Error(t, err)
	assert.True(t, gdierrors.IsKind(err, gdierrors.KindConfig))
}

func TestFileSink_Put(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir, CodecZstd)
	ctx := logger.ContextWithRunID(context.Background(), "run-1")

	require.NoError(t, Store(ctx, sink, "market", "SPY", payload))

	raw, err := os.ReadFile(filepath.Join(dir, "market", "run-1", "SPY.json.zst"))
	require.NoError(t, err)
	decoded, err := CodecZstd.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestStore_NilSink(t *testing.T) {
	assert.NoError(t, Store(context.Background(), nil, "market", "SPY", payload))
}

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeUploader) Upload(ctx context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &manager.UploadOutput{}, nil
}

func TestS3Sink_Put(t *testing.T) {
	up := &fakeUploader{}
	sink := newS3Sink(up, S3Config{Bucket: "gdi-raw", Prefix: "raw"}, CodecLZ4)

	require.NoError(t, sink.Put(context.Background(), "market/run-1/SPY.json", payload))

	require.Len(t, up.inputs, 1)
	assert.Equal(t, "gdi-raw", aws.ToString(up.inputs[0].Bucket))
	assert.Equal(t, "raw/market/run-1/SPY.json.lz4", aws.ToString(up.inputs[0].Key))
	assert.Equal(t, "lz4", aws.ToString(up.inputs[0].ContentEncoding))
	decoded, err := CodecLZ4.Decode(up.bodies[0])
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, decoded))
}

func TestStore_WrapsSinkFailure(t *testing.T) {
	sink := newS3Sink(&fakeUploader{err: errors.New("access denied")}, S3Config{Bucket: "b"}, CodecNone)
	err := Store(context.Background(), sink, "market", "SPY", payload)
	require.Error(t, err)
	assert.True(t, gdierrors.IsKind(err, gdierrors.KindStorage))
}

func TestNew(t *testing.T) {
	sink, err := New(context.Background(), config.ArchiveConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, sink)

	sink, err = New(context.Background(), config.ArchiveConfig{Enabled: true, Kind: "file", Dir: t.TempDir(), Codec: "lz4"})
	require.NoError(t, err)
	assert.IsType(t, &FileSink{}, sink)
}

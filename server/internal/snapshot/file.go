package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// codec compresses the encoded record set on its way to disk.
type codec interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

type plain struct{}

func (plain) Encode(data []byte) ([]byte, error) { return data, nil }
func (plain) Decode(data []byte) ([]byte, error) { return data, nil }

type s2codec struct{}

func (s2codec) Encode(data []byte) ([]byte, error) { return s2.Encode(nil, data), nil }
func (s2codec) Decode(data []byte) ([]byte, error) { return s2.Decode(nil, data) }

type zstdcodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstd() (*zstdcodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdcodec{enc: enc, dec: dec}, nil
}

func (z *zstdcodec) Encode(data []byte) ([]byte, error) { return z.enc.EncodeAll(data, nil), nil }
func (z *zstdcodec) Decode(data []byte) ([]byte, error) { return z.dec.DecodeAll(data, nil) }

func newCodec(compression string) (codec, error) {
	switch compression {
	case "", "none":
		return plain{}, nil
	case "s2":
		return s2codec{}, nil
	case "zstd":
		return newZstd()
	}
	return nil, fmt.Errorf("unknown compression %q", compression)
}

// File stores the record set as a single JSON object on local disk.
type File struct {
	path  string
	codec codec
}

// NewFile returns a File backend at path. The parent directory is created and
// an empty record set is written if path does not exist yet.
func NewFile(path, compression string) (*File, error) {
	if path == "" {
		return nil, errors.New("snapshot: file path is empty")
	}
	c, err := newCodec(compression)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	f := &File{path: path, codec: c}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	ok, err := exists(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: stat %q: %w", path, err)
	}
	if !ok {
		if err := f.Save(context.Background(), map[string]string{}); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Path returns the snapshot file location.
func (f *File) Path() string { return f.path }

func (f *File) Load(context.Context) (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	raw, err := f.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	records := make(map[string]string)
	if len(raw) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return records, nil
}

// Save writes records to a temp file beside the snapshot and renames it into
// place, so readers only ever see a complete record set.
func (f *File) Save(ctx context.Context, records map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data, err := f.codec.Encode(raw)
	if err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		rmErr := os.Remove(tmp)
		return errors.Join(fmt.Errorf("rename snapshot: %w", err), rmErr)
	}
	return nil
}

func (f *File) Close() error {
	if z, ok := f.codec.(*zstdcodec); ok {
		z.dec.Close()
		return z.enc.Close()
	}
	return nil
}

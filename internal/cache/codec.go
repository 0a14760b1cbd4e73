package cache

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"log/slog"

	"github.com/andybalholm/brotli"

	"github.com/storekit/storekit/pkg/errors"
)

// codecPipeline applies the reversible transforms for stored values:
// compress, then encrypt. Decoding reverses in the opposite order.
//
// Encoding never fails: a failing stage falls back to its input bytes and
// reports the stage as not applied. Decoding is strict, since the on-disk
// bytes really carry whatever transforms the entry metadata recorded.
type codecPipeline struct {
	algorithm string // gzip or brotli
	level     int
	aead      cipher.AEAD // nil when no encryption key is configured
	logger    *slog.Logger
}

func newCodecPipeline(algorithm string, level int, key string, logger *slog.Logger) (*codecPipeline, error) {
	p := &codecPipeline{
		algorithm: algorithm,
		level:     level,
		logger:    logger,
	}

	if key != "" {
		// Derive a fixed-length AES-256 key from the configured secret.
		sum := sha256.Sum256([]byte(key))
		block, err := aes.NewCipher(sum[:])
		if err != nil {
			return nil, errors.New(errors.ErrCodeEncryptionKey, "failed to initialize cipher").WithCause(err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, errors.New(errors.ErrCodeEncryptionKey, "failed to initialize AES-GCM").WithCause(err)
		}
		p.aead = aead
	}

	return p, nil
}

// encode transforms raw value bytes for storage. The returned flags report
// which stages were actually applied and must be persisted with the entry.
func (p *codecPipeline) encode(raw []byte, wantCompress, wantEncrypt bool) (out []byte, compressed, encrypted bool) {
	out = raw

	if wantCompress {
		if data, err := p.compress(out); err != nil {
			p.logger.Warn("compression failed, storing uncompressed", "error", err)
		} else {
			out = data
			compressed = true
		}
	}

	if wantEncrypt {
		switch {
		case p.aead == nil:
			p.logger.Warn("encryption requested but no key configured, storing unencrypted")
		default:
			if data, err := p.encrypt(out); err != nil {
				p.logger.Warn("encryption failed, storing unencrypted", "error", err)
			} else {
				out = data
				encrypted = true
			}
		}
	}

	return out, compressed, encrypted
}

// decode reverses the transforms recorded at write time: decrypt first,
// then decompress. Any failure is a hard codec error.
func (p *codecPipeline) decode(data []byte, compressed, encrypted bool) ([]byte, error) {
	out := data

	if encrypted {
		plain, err := p.decrypt(out)
		if err != nil {
			return nil, err
		}
		out = plain
	}

	if compressed {
		raw, err := p.decompress(out)
		if err != nil {
			return nil, err
		}
		out = raw
	}

	return out, nil
}

func (p *codecPipeline) compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer

	switch p.algorithm {
	case "brotli":
		w := brotli.NewWriterLevel(&buf, p.level)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		w, err := gzip.NewWriterLevel(&buf, p.level)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func (p *codecPipeline) decompress(data []byte) ([]byte, error) {
	var reader io.Reader

	switch p.algorithm {
	case "brotli":
		reader = brotli.NewReader(bytes.NewReader(data))
	default:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.New(errors.ErrCodeCodecDecode, "blob is not valid gzip data").WithCause(err)
		}
		defer func() { _ = r.Close() }()
		reader = r
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeCodecDecode, "failed to decompress blob with %s", p.algorithm).WithCause(err)
	}
	return raw, nil
}

func (p *codecPipeline) encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	// Nonce is prepended so decrypt is self-contained.
	return p.aead.Seal(nonce, nonce, data, nil), nil
}

func (p *codecPipeline) decrypt(data []byte) ([]byte, error) {
	if p.aead == nil {
		return nil, errors.New(errors.ErrCodeCodecDecode, "blob is encrypted but no key is configured")
	}
	nonceSize := p.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New(errors.ErrCodeCodecDecode, "encrypted blob is too short")
	}
	plain, err := p.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCodecDecode, "failed to decrypt blob").WithCause(err)
	}
	return plain, nil
}

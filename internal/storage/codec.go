package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"voxelworld/internal/world"
)

const (
	chunkMagic   = "VXAR"
	chunkVersion = 1
	// magic, version, x, y, raw length, checksum, compressed length
	chunkHeaderSize = 4 + 1 + 4 + 4 + 4 + 8 + 4
	// A run-length body never exceeds two maximal varints per voxel.
	maxRawLen = world.ChunkVolume * 2 * binary.MaxVarintLen64
)

var (
	ErrCorrupt  = errors.New("corrupt chunk data")
	ErrVersion  = errors.New("unsupported format version")
	ErrChecksum = errors.New("chunk checksum mismatch")
)

// Codec converts chunks to and from their on-disk form: a fixed header
// followed by a zstd-compressed run-length body. It is safe for concurrent use.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCodec creates a codec compressing at the given zstd level (1..22).
func NewCodec(level int) (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0), zstd.WithDecoderMaxMemory(maxRawLen))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}

// Encode serialises the chunk's voxels. Dirty state is not stored.
func (c *Codec) Encode(chunk *world.Chunk) []byte {
	raw := encodeRuns(chunk.Voxels())
	compressed := c.enc.EncodeAll(raw, nil)

	out := make([]byte, chunkHeaderSize, chunkHeaderSize+len(compressed))
	copy(out[0:4], chunkMagic)
	out[4] = chunkVersion
	binary.LittleEndian.PutUint32(out[5:9], chunk.Coord.X)
	binary.LittleEndian.PutUint32(out[9:13], chunk.Coord.Y)
	binary.LittleEndian.PutUint32(out[13:17], uint32(len(raw)))
	binary.LittleEndian.PutUint64(out[17:25], xxhash.Sum64(raw))
	binary.LittleEndian.PutUint32(out[25:29], uint32(len(compressed)))
	return append(out, compressed...)
}

// Decode validates and decodes data stored for want.
func (c *Codec) Decode(want world.ChunkCoord, data []byte) (*world.Chunk, error) {
	if len(data) < chunkHeaderSize {
		return nil, fmt.Errorf("%w: %d byte header", ErrCorrupt, len(data))
	}
	if !bytes.Equal(data[0:4], []byte(chunkMagic)) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, data[0:4])
	}
	if data[4] != chunkVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, data[4])
	}
	got := world.ChunkCoord{
		X: binary.LittleEndian.Uint32(data[5:9]),
		Y: binary.LittleEndian.Uint32(data[9:13]),
	}
	if got != want {
		return nil, fmt.Errorf("%w: stored %v, expected %v", ErrCorrupt, got, want)
	}
	rawLen := binary.LittleEndian.Uint32(data[13:17])
	sum := binary.LittleEndian.Uint64(data[17:25])
	compLen := binary.LittleEndian.Uint32(data[25:29])
	body := data[chunkHeaderSize:]
	if uint32(len(body)) != compLen {
		return nil, fmt.Errorf("%w: body is %d bytes, header says %d", ErrCorrupt, len(body), compLen)
	}
	if rawLen > maxRawLen {
		return nil, fmt.Errorf("%w: raw length %d", ErrCorrupt, rawLen)
	}

	raw, err := c.dec.DecodeAll(body, make([]byte, 0, rawLen))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCorrupt, err)
	}
	if uint32(len(raw)) != rawLen {
		return nil, fmt.Errorf("%w: raw body is %d bytes, header says %d", ErrCorrupt, len(raw), rawLen)
	}
	if xxhash.Sum64(raw) != sum {
		return nil, ErrChecksum
	}
	voxels, err := decodeRuns(raw)
	if err != nil {
		return nil, err
	}
	return world.NewChunkFromVoxels(want, voxels)
}

// encodeRuns writes (voxel, run length) uvarint pairs.
func encodeRuns(voxels []world.Voxel) []byte {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(voxels) {
		v := voxels[i]
		run := 1
		for j := i + 1; j < len(voxels) && voxels[j] == v; j++ {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return buf.Bytes()
}

func decodeRuns(raw []byte) ([]world.Voxel, error) {
	out := make([]world.Voxel, 0, world.ChunkVolume)
	for i := 0; i < len(raw); {
		id, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad varint at %d", ErrCorrupt, i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad varint at %d", ErrCorrupt, i)
		}
		i += n
		if id > 0xFF {
			return nil, fmt.Errorf("%w: voxel id %d", ErrCorrupt, id)
		}
		v, err := world.ParseVoxel(byte(id))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if run == 0 || run > uint64(world.ChunkVolume-len(out)) {
			return nil, fmt.Errorf("%w: run of %d overflows chunk", ErrCorrupt, run)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, v)
		}
	}
	if len(out) != world.ChunkVolume {
		return nil, fmt.Errorf("%w: %d voxels, want %d", ErrCorrupt, len(out), world.ChunkVolume)
	}
	return out, nil
}

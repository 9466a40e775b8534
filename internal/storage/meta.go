package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"voxelworld/internal/world"
)

const (
	metaFile    = "world.meta"
	physicsFile = "physics.dat"

	metaMagic      = "VXWM"
	metaVersion    = 1
	physicsMagic   = "VXPH"
	physicsVersion = 1

	maxRecords = 1 << 20
)

// WorldMeta is the identity of a saved world.
type WorldMeta struct {
	ID         uuid.UUID
	Name       string
	SeedString string
	Seed       int64
	CreatedAt  time.Time
	WorldTime  time.Duration
}

// FallingRecord is a falling block in flight when the world was saved.
type FallingRecord struct {
	Voxel    world.Voxel
	Position mgl64.Vec3
	Velocity mgl64.Vec3
}

// ChargeRecord is an explosive charge that had not detonated yet.
type ChargeRecord struct {
	State    uint8
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Fuse     time.Duration
}

// PhysicsState lets simulations resume where the previous session stopped.
type PhysicsState struct {
	WorldTime time.Duration
	WaterLag  time.Duration
	Falling   []FallingRecord
	Water     []world.AbsoluteLocation
	Charges   []ChargeRecord
}

// WorldDir returns the directory of a named world below root.
func WorldDir(root, name string) string {
	return filepath.Join(root, name)
}

func WriteMeta(dir string, meta WorldMeta) error {
	var w binWriter
	w.magic(metaMagic, metaVersion)
	w.bytes(meta.ID[:])
	w.str(meta.Name)
	w.str(meta.SeedString)
	w.i64(meta.Seed)
	w.i64(meta.CreatedAt.UnixNano())
	w.i64(int64(meta.WorldTime))
	return writeFileAtomic(filepath.Join(dir, metaFile), w.buf.Bytes())
}

// ReadMeta returns ErrNotFound when the world has no metadata yet.
func ReadMeta(dir string) (WorldMeta, error) {
	var meta WorldMeta
	data, err := readOptional(filepath.Join(dir, metaFile))
	if err != nil {
		return meta, err
	}
	r := binReader{r: bytes.NewReader(data)}
	r.magic(metaMagic, metaVersion)
	copy(meta.ID[:], r.bytes(16))
	meta.Name = r.str()
	meta.SeedString = r.str()
	meta.Seed = r.i64()
	meta.CreatedAt = time.Unix(0, r.i64()).UTC()
	meta.WorldTime = time.Duration(r.i64())
	if r.err != nil {
		return WorldMeta{}, fmt.Errorf("read %s: %w", metaFile, r.err)
	}
	return meta, nil
}

func WritePhysics(dir string, state PhysicsState) error {
	var w binWriter
	w.magic(physicsMagic, physicsVersion)
	w.i64(int64(state.WorldTime))
	w.i64(int64(state.WaterLag))
	w.uvarint(uint64(len(state.Falling)))
	for _, f := range state.Falling {
		w.u8(uint8(f.Voxel))
		w.vec(f.Position)
		w.vec(f.Velocity)
	}
	w.uvarint(uint64(len(state.Water)))
	for _, loc := range state.Water {
		w.i64(int64(loc.X))
		w.i64(int64(loc.Y))
		w.i64(int64(loc.Z))
	}
	w.uvarint(uint64(len(state.Charges)))
	for _, c := range state.Charges {
		w.u8(c.State)
		w.vec(c.Position)
		w.vec(c.Velocity)
		w.i64(int64(c.Fuse))
	}
	return writeFileAtomic(filepath.Join(dir, physicsFile), w.buf.Bytes())
}

// ReadPhysics returns ErrNotFound when no physics state was saved.
func ReadPhysics(dir string) (PhysicsState, error) {
	var state PhysicsState
	data, err := readOptional(filepath.Join(dir, physicsFile))
	if err != nil {
		return state, err
	}
	r := binReader{r: bytes.NewReader(data)}
	r.magic(physicsMagic, physicsVersion)
	state.WorldTime = time.Duration(r.i64())
	state.WaterLag = time.Duration(r.i64())

	n := r.count()
	for i := 0; i < n && r.err == nil; i++ {
		var f FallingRecord
		v, err := world.ParseVoxel(r.u8())
		if err != nil && r.err == nil {
			r.err = fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		f.Voxel = v
		f.Position = r.vec()
		f.Velocity = r.vec()
		state.Falling = append(state.Falling, f)
	}
	n = r.count()
	for i := 0; i < n && r.err == nil; i++ {
		state.Water = append(state.Water, world.AbsoluteLocation{X: int(r.i64()), Y: int(r.i64()), Z: int(r.i64())})
	}
	n = r.count()
	for i := 0; i < n && r.err == nil; i++ {
		var c ChargeRecord
		c.State = r.u8()
		c.Position = r.vec()
		c.Velocity = r.vec()
		c.Fuse = time.Duration(r.i64())
		state.Charges = append(state.Charges, c)
	}
	if r.err != nil {
		return PhysicsState{}, fmt.Errorf("read %s: %w", physicsFile, r.err)
	}
	return state, nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

type binWriter struct {
	buf bytes.Buffer
	tmp [binary.MaxVarintLen64]byte
}

func (w *binWriter) magic(m string, version uint8) {
	w.buf.WriteString(m)
	w.buf.WriteByte(version)
}

func (w *binWriter) u8(v uint8) { w.buf.WriteByte(v) }

func (w *binWriter) i64(v int64) {
	binary.LittleEndian.PutUint64(w.tmp[:8], uint64(v))
	w.buf.Write(w.tmp[:8])
}

func (w *binWriter) f64(v float64) {
	binary.LittleEndian.PutUint64(w.tmp[:8], math.Float64bits(v))
	w.buf.Write(w.tmp[:8])
}

func (w *binWriter) vec(v mgl64.Vec3) {
	w.f64(v.X())
	w.f64(v.Y())
	w.f64(v.Z())
}

func (w *binWriter) uvarint(v uint64) {
	n := binary.PutUvarint(w.tmp[:], v)
	w.buf.Write(w.tmp[:n])
}

func (w *binWriter) bytes(b []byte) { w.buf.Write(b) }

func (w *binWriter) str(s string) {
	w.uvarint(uint64(len(s)))
	w.buf.WriteString(s)
}

// binReader remembers the first error; later reads return zero values.
type binReader struct {
	r   *bytes.Reader
	err error
}

func (r *binReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *binReader) magic(m string, version uint8) {
	got := r.bytes(len(m))
	if r.err != nil {
		return
	}
	if string(got) != m {
		r.fail(fmt.Errorf("%w: bad magic %q", ErrCorrupt, got))
		return
	}
	if v := r.u8(); r.err == nil && v != version {
		r.fail(fmt.Errorf("%w: %d", ErrVersion, v))
	}
}

func (r *binReader) bytes(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.fail(fmt.Errorf("%w: truncated", ErrCorrupt))
	}
	return b
}

func (r *binReader) u8() uint8 {
	return r.bytes(1)[0]
}

func (r *binReader) i64() int64 {
	return int64(binary.LittleEndian.Uint64(r.bytes(8)))
}

func (r *binReader) f64() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(r.bytes(8)))
}

func (r *binReader) vec() mgl64.Vec3 {
	return mgl64.Vec3{r.f64(), r.f64(), r.f64()}
}

func (r *binReader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := binary.ReadUvarint(r.r)
	if err != nil {
		r.fail(fmt.Errorf("%w: bad varint", ErrCorrupt))
	}
	return v
}

func (r *binReader) count() int {
	n := r.uvarint()
	if n > maxRecords {
		r.fail(fmt.Errorf("%w: %d records", ErrCorrupt, n))
		return 0
	}
	return int(n)
}

func (r *binReader) str() string {
	n := r.uvarint()
	if n > 1<<16 {
		r.fail(fmt.Errorf("%w: string of %d bytes", ErrCorrupt, n))
		return ""
	}
	return string(r.bytes(int(n)))
}

package mrc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io/fs"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapmod/pkg/volume"
)

func testVolume(nx, ny, nz int, apix float64) *volume.Volume {
	vol := volume.New(nx, ny, nz, apix)
	rng := rand.New(rand.NewSource(41))
	for i := range vol.Data {
		vol.Data[i] = rng.NormFloat64()
	}
	return vol
}

func writeRaw(t *testing.T, hdr *Header, payload []byte) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))
	buf.Write(payload)

	path := filepath.Join(t.TempDir(), "raw.mrc")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestHeaderIs1024Bytes(t *testing.T) {
	assert.Equal(t, headerSize, binary.Size(Header{}))
}

func TestWriteReadRoundTrip(t *testing.T) {
	vol := testVolume(12, 10, 8, 1.31)
	path := filepath.Join(t.TempDir(), "map.mrc")

	require.NoError(t, Write(path, vol))

	got, hdr, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, vol.Nx, got.Nx)
	assert.Equal(t, vol.Ny, got.Ny)
	assert.Equal(t, vol.Nz, got.Nz)
	assert.InDelta(t, vol.PixelSize, got.PixelSize, 1e-5)

	require.Len(t, got.Data, len(vol.Data))
	for i := range vol.Data {
		assert.InDelta(t, vol.Data[i], got.Data[i], 1e-5, "voxel %d", i)
	}

	assert.EqualValues(t, ModeFloat32, hdr.Mode)
	assert.Equal(t, magic, hdr.Map)
	assert.EqualValues(t, vol.Nx, hdr.Mx)
	assert.Equal(t, [3]float32{90, 90, 90}, hdr.CellB)
	assert.LessOrEqual(t, hdr.DMin, hdr.DMean)
	assert.LessOrEqual(t, hdr.DMean, hdr.DMax)
	assert.Greater(t, hdr.RMS, float32(0))
}

func TestReadIntegerModes(t *testing.T) {
	base := Header{
		Nx: 2, Ny: 2, Nz: 1,
		Mx: 2, My: 2, Mz: 1,
		CellA: [3]float32{2, 2, 1},
		MapC:  1, MapR: 2, MapS: 3,
		Map: magic,
	}

	tests := []struct {
		name    string
		mode    int32
		payload interface{}
		want    []float64
	}{
		{
			name: "int8", mode: ModeInt8,
			payload: []int8{-5, 0, 7, 100},
			want:    []float64{-5, 0, 7, 100},
		},
		{
			name: "int16", mode: ModeInt16,
			payload: []int16{-300, 5, 1000, -2},
			want:    []float64{-300, 5, 1000, -2},
		},
		{
			name: "uint16", mode: ModeUint16,
			payload: []uint16{0, 65535, 42, 7},
			want:    []float64{0, 65535, 42, 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr := base
			hdr.Mode = tt.mode

			var buf bytes.Buffer
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, tt.payload))
			path := writeRaw(t, &hdr, buf.Bytes())

			vol, _, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, vol.Data)
			assert.InDelta(t, 1.0, vol.PixelSize, 1e-9)
		})
	}
}

func TestReadSkipsExtendedHeader(t *testing.T) {
	hdr := Header{
		Nx: 1, Ny: 1, Nz: 2,
		Mode: ModeFloat32, NSymBt: 16,
		Map: magic,
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, 16))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, []float32{1.5, -2.5}))
	path := writeRaw(t, &hdr, buf.Bytes())

	vol, _, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2.5}, vol.Data)
}

func TestReadNoCellLengths(t *testing.T) {
	hdr := Header{Nx: 1, Ny: 1, Nz: 1, Mode: ModeFloat32, Map: magic}
	path := writeRaw(t, &hdr, make([]byte, 4))

	vol, _, err := Read(path)
	require.NoError(t, err)
	assert.Zero(t, vol.PixelSize)
}

func TestReadRejectsCorruptFiles(t *testing.T) {
	valid := Header{Nx: 1, Ny: 1, Nz: 1, Mode: ModeFloat32, Map: magic}

	t.Run("bad magic", func(t *testing.T) {
		hdr := valid
		hdr.Map = [4]byte{'X', 'Y', 'Z', ' '}
		path := writeRaw(t, &hdr, make([]byte, 4))

		_, _, err := Read(path)
		var ferr *FormatError
		require.ErrorAs(t, err, &ferr)
	})

	t.Run("unsupported mode", func(t *testing.T) {
		hdr := valid
		hdr.Mode = 4
		path := writeRaw(t, &hdr, make([]byte, 8))

		_, _, err := Read(path)
		var ferr *FormatError
		require.ErrorAs(t, err, &ferr)
		assert.Contains(t, ferr.Reason, "mode")
	})

	t.Run("negative dimension", func(t *testing.T) {
		hdr := valid
		hdr.Ny = -3
		path := writeRaw(t, &hdr, nil)

		_, _, err := Read(path)
		var ferr *FormatError
		require.ErrorAs(t, err, &ferr)
	})

	t.Run("short header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "short.mrc")
		require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

		_, _, err := Read(path)
		var ferr *FormatError
		require.ErrorAs(t, err, &ferr)
		assert.Contains(t, ferr.Error(), "truncated header")
	})

	t.Run("short payload", func(t *testing.T) {
		hdr := valid
		hdr.Nz = 4
		path := writeRaw(t, &hdr, make([]byte, 7))

		_, _, err := Read(path)
		var ferr *FormatError
		require.ErrorAs(t, err, &ferr)
		assert.Contains(t, ferr.Reason, "voxel data")
	})
}

func TestReadMissingFile(t *testing.T) {
	_, _, err := Read(filepath.Join(t.TempDir(), "nope.mrc"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestWriteQuantizesToFloat32(t *testing.T) {
	vol := volume.New(1, 1, 1, 1)
	vol.Data[0] = math.Pi

	path := filepath.Join(t.TempDir(), "pi.mrc")
	require.NoError(t, Write(path, vol))

	got, _, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, float64(float32(math.Pi)), got.Data[0])
}

func TestWriteInvalidVolume(t *testing.T) {
	vol := &volume.Volume{Data: make([]float64, 3), Nx: 2, Ny: 2, Nz: 2, PixelSize: 1}
	err := Write(filepath.Join(t.TempDir(), "bad.mrc"), vol)
	require.Error(t, err)
}

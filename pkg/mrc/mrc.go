// Package mrc reads and writes MRC2014 density map files.
//
// Only the header fields the transform pipeline consumes are interpreted:
// grid dimensions, cell lengths (for the voxel size), the data mode and the
// density statistics. Read accepts modes 0 (int8), 1 (int16), 2 (float32)
// and 6 (uint16); files are always written little-endian in mode 2, the
// interchange convention for single-particle maps.
package mrc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"mapmod/pkg/volume"
)

// Data modes defined by MRC2014.
const (
	ModeInt8    = 0
	ModeInt16   = 1
	ModeFloat32 = 2
	ModeUint16  = 6
)

const (
	headerSize = 1024
	nVersion   = 20140
	maxVoxels  = math.MaxInt32
)

var (
	magic  = [4]byte{'M', 'A', 'P', ' '}
	machLE = [4]byte{0x44, 0x44, 0, 0}
)

// Header is the 1024-byte MRC2014 file header, laid out exactly as on
// disk (little-endian). Words 25-49 are kept raw in Extra; word 28
// (Extra[3]) is the format version.
type Header struct {
	Nx, Ny, Nz                int32
	Mode                      int32
	NxStart, NyStart, NzStart int32
	Mx, My, Mz                int32
	CellA                     [3]float32
	CellB                     [3]float32
	MapC, MapR, MapS          int32
	DMin, DMax, DMean         float32
	ISpg                      int32
	NSymBt                    int32
	Extra                     [25]int32
	Origin                    [3]float32
	Map                       [4]byte
	MachSt                    [4]byte
	RMS                       float32
	NLabl                     int32
	Labels                    [10][80]byte
}

// PixelSize derives the voxel edge length from the cell dimensions, or 0
// when the header carries no box lengths.
func (h *Header) PixelSize() float64 {
	if h.Nx > 0 && h.CellA[0] > 0 {
		return float64(h.CellA[0]) / float64(h.Nx)
	}
	return 0
}

func (h *Header) voxelBytes() int {
	switch h.Mode {
	case ModeInt8:
		return 1
	case ModeInt16, ModeUint16:
		return 2
	default:
		return 4
	}
}

func (h *Header) validate(path string) error {
	if h.Map != magic {
		return &FormatError{Path: path, Reason: fmt.Sprintf("bad magic %q, not an MRC2014 file", h.Map)}
	}
	if h.Nx <= 0 || h.Ny <= 0 || h.Nz <= 0 {
		return &FormatError{Path: path, Reason: fmt.Sprintf("non-positive dimensions %dx%dx%d", h.Nx, h.Ny, h.Nz)}
	}
	if int64(h.Nx)*int64(h.Ny)*int64(h.Nz) > maxVoxels {
		return &FormatError{Path: path, Reason: fmt.Sprintf("dimensions %dx%dx%d exceed the supported size", h.Nx, h.Ny, h.Nz)}
	}
	switch h.Mode {
	case ModeInt8, ModeInt16, ModeFloat32, ModeUint16:
	default:
		return &FormatError{Path: path, Reason: fmt.Sprintf("unsupported data mode %d", h.Mode)}
	}
	if h.NSymBt < 0 {
		return &FormatError{Path: path, Reason: fmt.Sprintf("negative extended header size %d", h.NSymBt)}
	}
	return nil
}

// FormatError describes a structurally invalid density map file.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Read loads a density map. The returned Volume has its pixel size
// prefilled from the header cell lengths (0 when the header carries none)
// and its data promoted to float64 in file order, x fastest.
func Read(path string) (*volume.Volume, *Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open density map: %w", err)
	}
	defer f.Close()

	return decode(f, path)
}

func decode(r io.Reader, path string) (*volume.Volume, *Header, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, nil, &FormatError{Path: path, Reason: "truncated header"}
	}

	var hdr Header
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &hdr); err != nil {
		return nil, nil, &FormatError{Path: path, Reason: fmt.Sprintf("unreadable header: %v", err)}
	}
	if err := hdr.validate(path); err != nil {
		return nil, nil, err
	}

	// Symmetry records and other extended header content are not consumed.
	if hdr.NSymBt > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(hdr.NSymBt)); err != nil {
			return nil, nil, &FormatError{Path: path, Reason: "truncated extended header"}
		}
	}

	n := int(hdr.Nx) * int(hdr.Ny) * int(hdr.Nz)
	payload := make([]byte, n*hdr.voxelBytes())
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, &FormatError{Path: path, Reason: "truncated voxel data"}
	}

	vol := volume.New(int(hdr.Nx), int(hdr.Ny), int(hdr.Nz), hdr.PixelSize())
	switch hdr.Mode {
	case ModeInt8:
		for i := range vol.Data {
			vol.Data[i] = float64(int8(payload[i]))
		}
	case ModeInt16:
		for i := range vol.Data {
			vol.Data[i] = float64(int16(binary.LittleEndian.Uint16(payload[2*i:])))
		}
	case ModeUint16:
		for i := range vol.Data {
			vol.Data[i] = float64(binary.LittleEndian.Uint16(payload[2*i:]))
		}
	case ModeFloat32:
		for i := range vol.Data {
			vol.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:])))
		}
	}

	return vol, &hdr, nil
}

// Write persists a density map in mode 2 (float32) with the volume's own
// pixel size, recomputing the header density statistics from the data.
// The array shape is preserved exactly.
func Write(path string, vol *volume.Volume) error {
	if err := vol.Validate(); err != nil {
		return fmt.Errorf("write density map: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create density map: %w", err)
	}

	if err := encode(f, vol); err != nil {
		f.Close()
		return fmt.Errorf("write density map: %w", err)
	}
	return f.Close()
}

func encode(w io.Writer, vol *volume.Volume) error {
	hdr := NewHeader(vol)

	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}

	buf := make([]byte, 4*len(vol.Data))
	for i, v := range vol.Data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
	}
	_, err := w.Write(buf)
	return err
}

// NewHeader builds a fresh mode-2 header for the volume: cell lengths are
// dims times the pixel size, axis order is the canonical x, y, z, and the
// density statistics are computed from the data.
func NewHeader(vol *volume.Volume) *Header {
	hdr := &Header{
		Nx: int32(vol.Nx), Ny: int32(vol.Ny), Nz: int32(vol.Nz),
		Mode: ModeFloat32,
		Mx:   int32(vol.Nx), My: int32(vol.Ny), Mz: int32(vol.Nz),
		MapC: 1, MapR: 2, MapS: 3,
		ISpg:   1,
		Map:    magic,
		MachSt: machLE,
	}
	hdr.Extra[3] = nVersion

	apix := vol.PixelSize
	if apix <= 0 {
		apix = 1
	}
	hdr.CellA = [3]float32{
		float32(float64(vol.Nx) * apix),
		float32(float64(vol.Ny) * apix),
		float32(float64(vol.Nz) * apix),
	}
	hdr.CellB = [3]float32{90, 90, 90}

	min, max := vol.MinMax()
	hdr.DMin = float32(min)
	hdr.DMax = float32(max)
	hdr.DMean = float32(vol.Mean())
	hdr.RMS = float32(vol.StdDev())

	return hdr
}

package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"mapmod/pkg/volume"
)

// Viewer renders planar sections of a density volume as grayscale images.
// The density range is fixed at construction so every section drawn from
// the same viewer shares one gray scale.
type Viewer struct {
	vol *volume.Volume
	min float64
	max float64
}

// NewViewer prepares a viewer for the given volume.
func NewViewer(vol *volume.Volume) *Viewer {
	min, max := vol.MinMax()
	return &Viewer{vol: vol, min: min, max: max}
}

func (v *Viewer) gray(val float64) color.Gray16 {
	if v.max <= v.min {
		return color.Gray16{}
	}
	g := (val - v.min) / (v.max - v.min) * 65535
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, g)))}
}

// Section renders one plane of the volume perpendicular to the given axis
// as a 16-bit grayscale image, darkest at the volume minimum and lightest
// at the maximum.
func (v *Viewer) Section(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	nx, ny, nz := v.vol.Dims()
	switch axis {
	case "x", "X":
		if position >= nx {
			return nil, fmt.Errorf("position %d exceeds width %d", position, nx)
		}
		img := image.NewGray16(image.Rect(0, 0, nz, ny))
		for y := 0; y < ny; y++ {
			for z := 0; z < nz; z++ {
				img.SetGray16(z, y, v.gray(v.vol.At(position, y, z)))
			}
		}
		return img, nil

	case "y", "Y":
		if position >= ny {
			return nil, fmt.Errorf("position %d exceeds height %d", position, ny)
		}
		img := image.NewGray16(image.Rect(0, 0, nx, nz))
		for z := 0; z < nz; z++ {
			for x := 0; x < nx; x++ {
				img.SetGray16(x, z, v.gray(v.vol.At(x, position, z)))
			}
		}
		return img, nil

	case "z", "Z":
		if position >= nz {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, nz)
		}
		img := image.NewGray16(image.Rect(0, 0, nx, ny))
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				img.SetGray16(x, y, v.gray(v.vol.At(x, y, position)))
			}
		}
		return img, nil

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// SaveSection writes a rendered section to disk as a JPEG image.
func (v *Viewer) SaveSection(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSequence renders and saves every section along the specified axis.
func (v *Viewer) SaveSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	nx, ny, nz := v.vol.Dims()
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = nx
	case "y", "Y":
		maxPos = ny
	case "z", "Z":
		maxPos = nz
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.Section(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSection(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SaveSections writes the three central orthogonal sections of the volume
// into dir, one JPEG per axis, creating the directory if needed.
func SaveSections(vol *volume.Volume, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	v := NewViewer(vol)
	nx, ny, nz := vol.Dims()
	sections := []struct {
		axis     string
		position int
	}{
		{"x", nx / 2},
		{"y", ny / 2},
		{"z", nz / 2},
	}

	for _, s := range sections {
		img, err := v.Section(s.axis, s.position)
		if err != nil {
			return err
		}
		filename := filepath.Join(dir, fmt.Sprintf("section_%s.jpg", s.axis))
		if err := v.SaveSection(img, filename); err != nil {
			return err
		}
	}
	return nil
}

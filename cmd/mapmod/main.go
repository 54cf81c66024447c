package main

import (
	"fmt"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"mapmod/internal/logging"
	"mapmod/pkg/config"
	"mapmod/pkg/transform"
)

// cliArgs holds one parsed command line. Empty strings and zero values mean
// not requested; spline order -1 defers to the defaults file.
type cliArgs struct {
	input  string
	output string

	apix      float64
	normalize bool
	reference string

	origin    string
	target    string
	euler     string
	translate string
	matrix    string

	splineOrder int

	lowpass    float64
	highpass   float64
	filterEdge int

	preview    string
	configPath string

	quiet   bool
	verbose bool
}

func newApp() (*kingpin.Application, *cliArgs) {
	c := &cliArgs{}

	app := kingpin.New("mapmod", "Modify cryo-EM density maps: normalize, filter and transform pose")
	app.HelpFlag.Short('h')

	app.Arg("input", "Input density map (MRC)").Required().StringVar(&c.input)
	app.Arg("output", "Output density map (MRC)").Required().StringVar(&c.output)

	app.Flag("apix", "Pixel size in Angstroms (overrides the map header)").Short('a').Float64Var(&c.apix)
	app.Flag("angpix", "Alias for --apix").Hidden().Float64Var(&c.apix)
	app.Flag("normalize", "Convert map densities to Z-scores").Short('n').BoolVar(&c.normalize)
	app.Flag("reference", "Normalization reference volume (MRC)").Short('r').StringVar(&c.reference)

	app.Flag("origin", "Origin coordinates in Angstroms (x,y,z)").StringVar(&c.origin)
	app.Flag("target", "Standard pose target coordinates in Angstroms (x,y,z)").StringVar(&c.target)
	app.Flag("euler", "Euler angles in degrees (phi,theta,psi)").StringVar(&c.euler)
	app.Flag("translate", "Translation vector in Angstroms (x,y,z)").StringVar(&c.translate)
	app.Flag("matrix", "Rotation matrix as JSON rows, 3x3 or 3x4").StringVar(&c.matrix)

	app.Flag("spline-order", "B-spline interpolation order, 0 to 5").Default("-1").IntVar(&c.splineOrder)

	app.Flag("lowpass", "Lowpass filter resolution in Angstroms").Float64Var(&c.lowpass)
	app.Flag("highpass", "Highpass filter resolution in Angstroms").Float64Var(&c.highpass)
	app.Flag("filter-edge", "Cosine edge width of filters in Fourier voxels").IntVar(&c.filterEdge)

	app.Flag("preview", "Directory for central-section preview images").StringVar(&c.preview)
	app.Flag("config", "YAML defaults file").Default("mapmod.yaml").StringVar(&c.configPath)

	app.Flag("quiet", "Print errors only").Short('q').BoolVar(&c.quiet)
	app.Flag("verbose", "Print informational messages").Short('v').BoolVar(&c.verbose)

	return app, c
}

// options merges the parsed flags with the defaults file. Flags win; the
// file fills in what the command line left unset.
func (c *cliArgs) options(cfg *config.Config) transform.Options {
	order := c.splineOrder
	if order < 0 {
		order = cfg.Resampling.SplineOrder
	}
	edge := c.filterEdge
	if edge <= 0 {
		edge = cfg.Filter.EdgeWidth
	}
	previewDir := c.preview
	if previewDir == "" {
		previewDir = cfg.Output.PreviewDir
	}

	level := logging.LevelWarning
	if c.verbose || cfg.Output.Verbose {
		level = logging.LevelInfo
	}
	if c.quiet || cfg.Output.Quiet {
		level = logging.LevelError
	}

	return transform.Options{
		Input:           c.input,
		Output:          c.output,
		PixelSize:       c.apix,
		Normalize:       c.normalize,
		Reference:       c.reference,
		Origin:          c.origin,
		Target:          c.target,
		Euler:           c.euler,
		Translate:       c.translate,
		Matrix:          c.matrix,
		SplineOrder:     order,
		Lowpass:         c.lowpass,
		Highpass:        c.highpass,
		FilterEdgeWidth: edge,
		Preview:         previewDir,
		Log:             logging.New(level, os.Stderr),
	}
}

func main() {
	app, c := newApp()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	opts := c.options(cfg)
	if err := transform.NewPipeline(opts).Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

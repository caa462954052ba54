package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"hsicube/internal/logging"
	"hsicube/pkg/config"
	"hsicube/pkg/cube"
	"hsicube/pkg/hsio"
)

type command struct {
	name  string
	usage string
	run   func(cfg *config.Config, args []string) error
}

var commands = []command{
	{"info", "info [-variable name] FILE", runInfo},
	{"stats", "stats [-channels] [-roi x,y,w,h] [-percentiles 2,50,98] FILE", runStats},
	{"convert", "convert -o OUT [-format f] [-dtype t] [-mode autoScale|clamp] [-crop x,y,w,h] [-normalize m] FILE", runConvert},
	{"preview", "preview -o OUT.png [-mode direct|range|pca] [-rgb r,g,b] FILE", runPreview},
	{"spectrum", "spectrum [-pixel x,y]... [-roi x,y,w,h]... [-agg mean] [-csv OUT] [-plot OUT] FILE", runSpectrum},
	{"channels", "channels -dir DIR [-depth 8|16] FILE", runChannels},
	{"mask", "mask -o OUT [-format png|npy|mat] [-colors] [-rect id:name:x,y,w,h]... [-band id:name:ch:lo:hi]... FILE", runMask},
	{"batch", "batch -jobs JOBS.yaml", runBatch},
	{"config", "config [-init]", runConfig},
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: hsicube [-config FILE] [-layout L] [-log LEVEL] [-quiet] COMMAND [flags]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s\n", c.usage)
	}
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "hsicube.yaml", "Path to the YAML configuration file")
	layout := flag.String("layout", "", "Axis layout (auto, HWC, HCW, CHW, CWH, WHC, WCH); overrides the config")
	quiet := flag.Bool("quiet", false, "Silence diagnostic logging")
	logLevel := flag.String("log", "", "Diagnostic level: quiet, warn, info or debug; overrides the config")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *layout != "" {
		cfg.Load.DefaultLayout = *layout
		if _, err := cfg.Layout(); err != nil {
			log.Fatalf("Invalid layout: %v", err)
		}
	}
	if *logLevel != "" {
		cfg.Output.Verbose = true
		cfg.Output.LogLevel = *logLevel
	}
	level, err := cfg.LogLevel()
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	if *quiet {
		level = logging.Quiet
	}
	logging.SetLevel(level)

	name, args := flag.Arg(0), flag.Args()[1:]
	for _, c := range commands {
		if c.name == name {
			if err := c.run(cfg, args); err != nil {
				log.Fatalf("%s failed: %v", name, err)
			}
			return
		}
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	flag.Usage()
	os.Exit(2)
}

// loadCube loads path and turns a pending MAT selection into an error that
// lists the candidates.
func loadCube(cfg *config.Config, path, variable string) (*cube.Cube, cube.Layout, error) {
	res, layout, err := loadInput(cfg, path, variable)
	if err != nil {
		return nil, cube.Auto, err
	}
	return res.Cube, layout, nil
}

// loadInput is loadCube for callers that also need the source metadata.
func loadInput(cfg *config.Config, path, variable string) (*hsio.Result, cube.Layout, error) {
	opts, err := cfg.LoadOptions()
	if err != nil {
		return nil, cube.Auto, err
	}
	if variable != "" {
		opts.Variable = variable
	}
	res, err := hsio.Load(path, opts)
	if err != nil {
		return nil, cube.Auto, err
	}
	if res.NeedsSelection() {
		var b strings.Builder
		for _, c := range res.Candidates {
			fmt.Fprintf(&b, "\n  %s %v %s", c.Name, c.Dims, c.DType)
		}
		return nil, cube.Auto, fmt.Errorf("%s holds several cubes, pick one with -variable:%s", path, b.String())
	}
	return res, opts.Layout, nil
}

// parseInts parses a comma separated list of exactly n integers.
func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated integers, got %q", n, s)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseRect(s string) (cube.Rect, error) {
	v, err := parseInts(s, 4)
	if err != nil {
		return cube.Rect{}, err
	}
	return cube.Rect{MinX: v[0], MinY: v[1], Width: v[2], Height: v[3]}, nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, " ") }

func (l *listFlag) Set(s string) error {
	*l = append(*l, s)
	return nil
}

// singleInput parses fs and returns its one positional argument.
func singleInput(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return "", fmt.Errorf("want exactly one input file, got %d", fs.NArg())
	}
	return fs.Arg(0), nil
}

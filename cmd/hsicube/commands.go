package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hsicube/internal/fsutil"
	"hsicube/pkg/codec/raster"
	"hsicube/pkg/colorsynth"
	"hsicube/pkg/config"
	"hsicube/pkg/convert"
	"hsicube/pkg/cube"
	"hsicube/pkg/hsio"
	"hsicube/pkg/spectrum"
	"hsicube/pkg/stats"
	"hsicube/pkg/visualization"
)

func runInfo(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	variable := fs.String("variable", "", "MAT variable to load")
	path, err := singleInput(fs, args)
	if err != nil {
		return err
	}

	opts, err := cfg.LoadOptions()
	if err != nil {
		return err
	}
	if *variable != "" {
		opts.Variable = *variable
	}
	res, err := hsio.Load(path, opts)
	if err != nil {
		return err
	}
	fmt.Printf("File:    %s\n", path)
	fmt.Printf("Format:  %s\n", res.Format)
	if res.NeedsSelection() {
		fmt.Println("Variables:")
		for _, c := range res.Candidates {
			fmt.Printf("  %-20s %v %s\n", c.Name, c.Dims, c.DType)
		}
		return nil
	}

	c := res.Cube
	fmt.Printf("Name:    %s\n", c.Name)
	fmt.Printf("Dims:    %v (%s order)\n", c.Dims, c.Order)
	fmt.Printf("DType:   %s\n", c.DType)
	if c.Rank() == 3 {
		if v, err := c.View(opts.Layout); err == nil {
			fmt.Printf("Layout:  %s -> %d x %d pixels, %d channels\n",
				cube.LayoutOf(v.Axes), v.Width, v.Height, v.Channels)
		}
	}
	if n := len(c.Wavelengths); n > 0 {
		fmt.Printf("Bands:   %d wavelengths, %g to %g %s\n", n, c.Wavelengths[0], c.Wavelengths[n-1], c.WavelengthUnits)
	}
	return nil
}

func printSummary(label string, s stats.Summary) {
	fmt.Printf("%-10s min %-12g max %-12g mean %-12g std %-12g n %d", label, s.Min, s.Max, s.Mean, s.StdDev, s.Count)
	if s.NonFinite > 0 {
		fmt.Printf(" non-finite %d", s.NonFinite)
	}
	if s.Sampled {
		fmt.Printf(" (every %d)", s.Stride)
	}
	fmt.Println()
}

func runStats(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	variable := fs.String("variable", "", "MAT variable to load")
	perChannel := fs.Bool("channels", false, "Print one summary per channel")
	roi := fs.String("roi", "", "Restrict per-channel summaries to x,y,w,h")
	percentiles := fs.String("percentiles", "", "Comma separated percentiles to report")
	path, err := singleInput(fs, args)
	if err != nil {
		return err
	}
	c, layout, err := loadCube(cfg, path, *variable)
	if err != nil {
		return err
	}

	opts := cfg.StatsOptions()
	printSummary("all", stats.ComputeWithOptions(c, opts))

	if *percentiles != "" {
		ps, err := parseFloats(*percentiles)
		if err != nil {
			return err
		}
		vals, err := stats.Percentiles(c, ps, opts)
		if err != nil {
			return err
		}
		for i, p := range ps {
			fmt.Printf("p%-9g %g\n", p, vals[i])
		}
	}

	var sums []stats.Summary
	switch {
	case *roi != "":
		rect, err := parseRect(*roi)
		if err != nil {
			return err
		}
		if sums, err = stats.ROI(c, layout, rect); err != nil {
			return err
		}
	case *perChannel:
		if sums, err = stats.Channels(c, layout); err != nil {
			return err
		}
	}
	for ch, s := range sums {
		label := fmt.Sprintf("ch %d", ch)
		if ch < len(c.Wavelengths) {
			label = fmt.Sprintf("%g", c.Wavelengths[ch])
		}
		printSummary(label, s)
	}
	return nil
}

func runConvert(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	variable := fs.String("variable", "", "MAT variable to load")
	output := fs.String("o", "", "Output file")
	format := fs.String("format", "", "Output format; default from the extension")
	dtype := fs.String("dtype", "", "Convert to this element type")
	mode := fs.String("mode", "", "Conversion mode: autoScale or clamp")
	crop := fs.String("crop", "", "Crop to x,y,w,h before writing")
	normalize := fs.String("normalize", "", "Normalize first: minmax, percentile, zscore, log, fraction")
	sidecar := fs.Bool("sidecar", cfg.Export.WavelengthSidecar, "Write <name>_wavelengths.txt")
	path, err := singleInput(fs, args)
	if err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("convert needs -o")
	}

	if *format != "" {
		cfg.Export.Format = *format
	}
	if *dtype != "" {
		cfg.Export.DType = *dtype
	}
	if *mode != "" {
		cfg.Export.ConvertMode = *mode
	}
	cfg.Export.WavelengthSidecar = *sidecar
	opts, err := cfg.SaveOptions()
	if err != nil {
		return err
	}

	res, layout, err := loadInput(cfg, path, *variable)
	if err != nil {
		return err
	}
	c := res.Cube
	opts.Layout = layout
	opts.ENVIMetadata = res.ENVI

	if *crop != "" {
		rect, err := parseRect(*crop)
		if err != nil {
			return err
		}
		v, err := visualization.NewViewer(c, layout)
		if err != nil {
			return err
		}
		if c, err = v.ExtractRegion(rect); err != nil {
			return err
		}
		opts.ENVIMetadata = res.ENVI.Shifted(rect.MinX, rect.MinY)
	}
	if *normalize != "" {
		m, err := convert.ParseMethod(*normalize)
		if err != nil {
			return err
		}
		p := convert.DefaultNormalizeParams()
		p.Method = m
		p.Stats = cfg.StatsOptions()
		if c, err = convert.Normalize(c, p); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := hsio.Save(*output, c, opts); err != nil {
		return err
	}
	fmt.Printf("Wrote %s in %.2f seconds\n", *output, time.Since(start).Seconds())
	return nil
}

func runPreview(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	variable := fs.String("variable", "", "MAT variable to load")
	output := fs.String("o", "", "Output PNG")
	mode := fs.String("mode", "", "Synthesis mode: direct, range or pca")
	rgb := fs.String("rgb", "", "Channels for red, green and blue (direct mode)")
	path, err := singleInput(fs, args)
	if err != nil {
		return err
	}
	if *output == "" {
		*output = hsio.Stem(path) + "_preview.png"
	}
	if *mode != "" {
		cfg.Color.Mode = *mode
	}
	if *rgb != "" {
		v, err := parseInts(*rgb, 3)
		if err != nil {
			return err
		}
		cfg.Color.Mapping = colorsynth.RGBChannelMapping{Red: v[0], Green: v[1], Blue: v[2]}
	}
	params, err := cfg.ColorParams()
	if err != nil {
		return err
	}

	c, layout, err := loadCube(cfg, path, *variable)
	if err != nil {
		return err
	}
	if err := hsio.SaveQuickPNG(*output, c, layout, params); err != nil {
		return err
	}
	fmt.Printf("Wrote %s preview to %s\n", params.Mode, *output)
	return nil
}

func runSpectrum(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("spectrum", flag.ExitOnError)
	variable := fs.String("variable", "", "MAT variable to load")
	var pixels, rois listFlag
	fs.Var(&pixels, "pixel", "Pixel x,y to sample (repeatable)")
	fs.Var(&rois, "roi", "Region x,y,w,h to aggregate (repeatable)")
	agg := fs.String("agg", "mean", "ROI aggregation: mean, median, min, max")
	csvOut := fs.String("csv", "", "Write the spectra as CSV")
	plotOut := fs.String("plot", "", "Write a spectrum chart (png, svg or pdf by extension)")
	path, err := singleInput(fs, args)
	if err != nil {
		return err
	}
	if len(pixels) == 0 && len(rois) == 0 {
		return fmt.Errorf("spectrum needs at least one -pixel or -roi")
	}
	mode, err := spectrum.ParseAggregation(*agg)
	if err != nil {
		return err
	}

	c, layout, err := loadCube(cfg, path, *variable)
	if err != nil {
		return err
	}

	var col spectrum.Collection
	for _, p := range pixels {
		xy, err := parseInts(p, 2)
		if err != nil {
			return err
		}
		s, err := spectrum.NewPixelSample(c, layout, xy[0], xy[1])
		if err != nil {
			return err
		}
		col.Add(s)
	}
	for _, r := range rois {
		rect, err := parseRect(r)
		if err != nil {
			return err
		}
		s, err := spectrum.NewROISample(c, layout, rect, mode)
		if err != nil {
			return err
		}
		col.Add(s)
	}

	if *csvOut == "" && *plotOut == "" {
		return spectrum.WriteCSV(os.Stdout, col.Samples)
	}
	var targets []fsutil.Target
	if *csvOut != "" {
		targets = append(targets, fsutil.Target{Path: *csvOut, Write: func(w io.Writer) error {
			return spectrum.WriteCSV(w, col.Samples)
		}})
	}
	if *plotOut != "" {
		opts := spectrum.DefaultPlotOptions()
		opts.Title = c.Name
		if ext := strings.TrimPrefix(filepath.Ext(*plotOut), "."); ext != "" {
			opts.Format = strings.ToLower(ext)
		}
		targets = append(targets, fsutil.Target{Path: *plotOut, Write: func(w io.Writer) error {
			return spectrum.Plot(col.Samples, opts, w)
		}})
	}
	if err := fsutil.AtomicWriteAll(targets); err != nil {
		return err
	}
	fmt.Printf("Wrote %d spectra\n", len(col.Samples))
	return nil
}

func runChannels(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("channels", flag.ExitOnError)
	variable := fs.String("variable", "", "MAT variable to load")
	dir := fs.String("dir", "channels", "Output directory")
	depth := fs.Int("depth", cfg.Export.PNGBitDepth, "PNG bit depth, 8 or 16")
	path, err := singleInput(fs, args)
	if err != nil {
		return err
	}
	d, err := raster.ParseDepth(*depth)
	if err != nil {
		return err
	}
	c, layout, err := loadCube(cfg, path, *variable)
	if err != nil {
		return err
	}

	fmt.Printf("Saving channels of %s to: %s\n", c.Name, *dir)
	paths, err := hsio.SaveChannels(*dir, filepath.Base(hsio.Stem(path)), c, layout, d)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d channel images\n", len(paths))
	return nil
}

func runConfig(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	initPath := fs.String("init", "", "Write a default configuration file to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *initPath != "" {
		if err := config.CreateDefaultConfigFile(*initPath); err != nil {
			return err
		}
		fmt.Printf("Default configuration written to %s\n", *initPath)
		return nil
	}
	opts, err := cfg.SaveOptions()
	if err != nil {
		return err
	}
	fmt.Printf("Workers:        %d\n", cfg.Workers())
	fmt.Printf("Layout:         %s\n", opts.Layout)
	fmt.Printf("Export format:  %s\n", opts.Format)
	fmt.Printf("Convert mode:   %s\n", opts.ConvertMode)
	fmt.Printf("Interleave:     %s\n", opts.Interleave)
	fmt.Printf("TIFF mode:      %s\n", opts.TIFFMode)
	fmt.Printf("Color mode:     %s\n", opts.Color.Mode)
	return nil
}

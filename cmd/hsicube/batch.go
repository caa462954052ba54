package main

import (
	"flag"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"hsicube/internal/models"
	"hsicube/pkg/config"
	"hsicube/pkg/cube"
	"hsicube/pkg/hsio"
	"hsicube/pkg/visualization"
)

func runBatch(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	jobsPath := fs.String("jobs", "", "YAML job list")
	workers := fs.Int("cores", cfg.Workers(), "Number of files converted at once")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobsPath == "" {
		fs.Usage()
		return fmt.Errorf("batch needs -jobs")
	}
	list, err := models.LoadJobs(*jobsPath)
	if err != nil {
		return err
	}

	fmt.Printf("Converting %d files with %d workers...\n", len(list.Jobs), *workers)
	start := time.Now()
	results := convertAll(cfg, list.Jobs, *workers)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", r.Job.Input, r.Err)
			continue
		}
		fmt.Printf("ok   %s -> %v\n", r.Job.Input, r.Files)
	}
	fmt.Printf("Finished in %.2f seconds\n", time.Since(start).Seconds())
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(results))
	}
	return nil
}

// convertAll runs the jobs with at most workers in flight. One failing job
// does not stop the others; every outcome is reported in job order.
func convertAll(cfg *config.Config, jobs []models.Job, workers int) []models.JobResult {
	results := make([]models.JobResult, len(jobs))
	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, job := range jobs {
		g.Go(func() error {
			files, err := convertJob(cfg, job)
			results[i] = models.JobResult{Job: job, Files: files, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func convertJob(base *config.Config, job models.Job) ([]string, error) {
	cfg := *base
	if job.Layout != "" {
		cfg.Load.DefaultLayout = job.Layout
	}
	if job.Format != "" {
		cfg.Export.Format = job.Format
	}
	if job.DType != "" {
		cfg.Export.DType = job.DType
	}
	opts, err := cfg.SaveOptions()
	if err != nil {
		return nil, err
	}

	res, layout, err := loadInput(&cfg, job.Input, job.Variable)
	if err != nil {
		return nil, err
	}
	c := res.Cube
	opts.Layout = layout
	opts.ENVIMetadata = res.ENVI

	if job.Crop != nil {
		v, err := visualization.NewViewer(c, layout)
		if err != nil {
			return nil, err
		}
		rect := cube.Rect{MinX: job.Crop.X, MinY: job.Crop.Y, Width: job.Crop.Width, Height: job.Crop.Height}
		if c, err = v.ExtractRegion(rect); err != nil {
			return nil, err
		}
		opts.ENVIMetadata = res.ENVI.Shifted(rect.MinX, rect.MinY)
	}

	if err := hsio.Save(job.Output, c, opts); err != nil {
		return nil, err
	}
	files := []string{job.Output}
	if job.Preview != "" {
		if err := hsio.SaveQuickPNG(job.Preview, c, layout, opts.Color); err != nil {
			return files, err
		}
		files = append(files, job.Preview)
	}
	return files, nil
}

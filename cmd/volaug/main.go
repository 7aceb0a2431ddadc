package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/floats"

	"volaug/internal/config"
	"volaug/internal/logging"
	"volaug/internal/telemetry"
	"volaug/pkg/augment"
	"volaug/pkg/geometry"
	"volaug/pkg/pipeline"
	"volaug/pkg/visualization"
	"volaug/pkg/volume"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	requests := flag.Int("requests", 1, "Number of augmented volumes to produce")
	parallel := flag.Int("parallel", 1, "Number of concurrent requests")
	outputDir := flag.String("output", "", "Output directory (overrides the configured one)")
	flag.Parse()

	logging.InitFromEnv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.L().Error("loading configuration", "err", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if cfg.Metrics.Enabled {
		telemetry.Expose(cfg.Metrics.Port)
	}

	if err := run(cfg, *requests, *parallel); err != nil {
		logging.L().Error("augmentation run failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, requests, parallel int) error {
	shape := geometry.Coord(cfg.Volume.Shape...)
	voxelSize := geometry.Coord(cfg.Volume.VoxelSize...)

	upstream := syntheticSource(shape, voxelSize, cfg.Augment)
	var artifact pipeline.Provider
	if cfg.Augment.ProbArtifact > 0 {
		artifact = artifactSource(shape, voxelSize, cfg.Augment)
	}

	node, err := augment.New(upstream, artifact, &augment.Config{
		ProbMissing:         cfg.Augment.ProbMissing,
		ProbLowContrast:     cfg.Augment.ProbLowContrast,
		ProbArtifact:        cfg.Augment.ProbArtifact,
		ProbDeform:          cfg.Augment.ProbDeform,
		ContrastScale:       cfg.Augment.ContrastScale,
		DeformationStrength: cfg.Augment.DeformationStrength,
		Axis:                cfg.Augment.Axis,
		Seed:                cfg.Augment.Seed,
	})
	if err != nil {
		return err
	}
	if err := node.Setup(); err != nil {
		return err
	}
	defer node.Teardown()

	roi := geometry.NewRoi(geometry.Coord(0, 0, 0), shape.Mul(voxelSize))
	ctx := context.Background()
	if parallel < 1 {
		parallel = 1
	}

	fmt.Printf("Producing %d augmented volume(s) of %s voxels with %d worker(s)\n",
		requests, shape, parallel)
	start := time.Now()

	jobs := make(chan int)
	errs := make(chan error, requests)
	var wg sync.WaitGroup
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				if err := produce(ctx, cfg, node, roi, n); err != nil {
					errs <- fmt.Errorf("request %d: %w", n, err)
				}
			}
		}()
	}
	for n := 0; n < requests; n++ {
		jobs <- n
	}
	close(jobs)
	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}

	fmt.Printf("Done in %.2f seconds\n", time.Since(start).Seconds())
	printKindSummary()
	return nil
}

func produce(ctx context.Context, cfg *config.Config, node *augment.DefectAugment, roi geometry.Roi, n int) error {
	batch, err := node.RequestBatch(ctx, volume.Request{volume.Raw: roi})
	if err != nil {
		return err
	}
	raw := batch[volume.Raw]
	fmt.Printf("  volume %d: %d samples, range [%.3f, %.3f]\n",
		n, len(raw.Data), floats.Min(raw.Data), floats.Max(raw.Data))

	if cfg.Output.SaveSections {
		viewer, err := visualization.NewViewer(raw)
		if err != nil {
			return err
		}
		dir := filepath.Join(cfg.Output.Dir, fmt.Sprintf("volume_%03d", n))
		if err := viewer.SaveSectionSequence(cfg.Augment.Axis, dir); err != nil {
			return fmt.Errorf("saving sections: %w", err)
		}
		fmt.Printf("  volume %d: sections saved to %s\n", n, dir)
	}
	return nil
}

// printKindSummary reads the slice counters back from the default
// Prometheus registry and prints augmented slices per kind.
func printKindSummary() {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return
	}
	for _, fam := range families {
		if fam.GetName() != "volaug_augmented_slices_total" {
			continue
		}
		fmt.Println("Augmented slices by kind:")
		for _, m := range fam.GetMetric() {
			var kind string
			for _, l := range m.GetLabel() {
				if l.GetName() == "kind" {
					kind = l.GetValue()
				}
			}
			fmt.Printf("  %-13s %d\n", kind, int64(m.GetCounter().GetValue()))
		}
	}
}

// syntheticSource builds an in-memory raw volume with a smooth gradient
// plus noise, padded so deformed slices have real data to pull from.
func syntheticSource(shape, voxelSize geometry.Coordinate, aug config.AugmentCfg) *pipeline.ArraySource {
	margin := int64(aug.DeformationStrength)
	offset := geometry.Coord(0, 0, 0)
	universe := shape.Clone()
	for d := range universe {
		if d != aug.Axis {
			offset[d] = -margin * voxelSize[d]
			universe[d] += 2 * margin
		}
	}

	spec := volume.Spec{
		Roi:            geometry.NewRoi(offset, universe.Mul(voxelSize)),
		VoxelSize:      voxelSize,
		Interpolatable: true,
		Dtype:          volume.Uint8,
	}

	rng := rand.New(rand.NewPCG(aug.Seed, aug.Seed+1))
	n0, n1, n2 := universe[0], universe[1], universe[2]
	data := make([]float64, n0*n1*n2)
	for i0 := int64(0); i0 < n0; i0++ {
		for i1 := int64(0); i1 < n1; i1++ {
			for i2 := int64(0); i2 < n2; i2++ {
				v := 96 +
					64*math.Sin(float64(i1)/12) +
					64*math.Cos(float64(i2)/17) +
					16*rng.Float64()
				data[(i0*n1+i1)*n2+i2] = math.Max(0, math.Min(255, v))
			}
		}
	}

	vol, err := volume.New(spec, data)
	if err != nil {
		panic(err)
	}
	return pipeline.NewArraySource(map[volume.Type]*volume.Volume{volume.Raw: vol})
}

// artifactSource builds a single-section artifact with a radial alpha
// blob, sized to match sections cut along the augmentation axis. When
// deformation is enabled the universe covers the padded sections that
// expanded requests produce.
func artifactSource(shape, voxelSize geometry.Coordinate, aug config.AugmentCfg) *pipeline.ArraySource {
	axis := aug.Axis
	secShape := shape.Clone()
	secShape[axis] = 1
	if aug.ProbDeform > 0 {
		for d := range secShape {
			if d != axis {
				secShape[d] += 2 * int64(aug.DeformationStrength)
			}
		}
	}

	rawSpec := volume.Spec{
		Roi:       geometry.NewRoi(geometry.Coord(0, 0, 0), secShape.Mul(voxelSize)),
		VoxelSize: voxelSize,
		Dtype:     volume.Uint8,
	}
	alphaSpec := rawSpec.Copy()
	alphaSpec.Dtype = volume.Float32

	var h, w int64
	switch axis {
	case 0:
		h, w = secShape[1], secShape[2]
	case 1:
		h, w = secShape[0], secShape[2]
	default:
		h, w = secShape[0], secShape[1]
	}

	rawData := make([]float64, h*w)
	alphaData := make([]float64, h*w)
	cr, cc := float64(h)/2, float64(w)/2
	radius := math.Min(cr, cc) * 0.8
	for r := int64(0); r < h; r++ {
		for c := int64(0); c < w; c++ {
			i := r*w + c
			rawData[i] = 224
			dist := math.Hypot(float64(r)-cr, float64(c)-cc)
			alphaData[i] = math.Max(0, 1-dist/radius)
		}
	}

	raw, err := volume.New(rawSpec, rawData)
	if err != nil {
		panic(err)
	}
	alpha, err := volume.New(alphaSpec, alphaData)
	if err != nil {
		panic(err)
	}
	return pipeline.NewArraySource(map[volume.Type]*volume.Volume{
		volume.Raw:       raw,
		volume.AlphaMask: alpha,
	})
}

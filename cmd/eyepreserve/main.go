// Command eyepreserve restores the eye colours of a source portrait on a
// generated image and writes the result.
//
//	eyepreserve -source in.jpg -generated model_out.png -out final.png -mode adaptive -feather 18
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-eyes/compositor"
	"github.com/nvr-ai/go-eyes/config"
	"github.com/nvr-ai/go-eyes/images"
	"github.com/nvr-ai/go-eyes/logger"
	"github.com/nvr-ai/go-eyes/preserve"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "eyepreserve:", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var (
		sourcePath    string
		generatedPath string
		outPath       string
		modeName      string
		feather       int
		disabled      bool
	)
	flag.StringVar(&sourcePath, "source", "", "Path to the source portrait")
	flag.StringVar(&generatedPath, "generated", "", "Path to the generated image")
	flag.StringVar(&outPath, "out", "", "Output path; the extension selects jpeg, png or webp")
	flag.StringVar(&modeName, "mode", cfg.Mode.String(), "Blend mode: rgb, chroma, lab, iris or adaptive")
	flag.IntVar(&feather, "feather", cfg.FeatherRadiusPx, "Feather radius in pixels")
	flag.BoolVar(&disabled, "disabled", !cfg.Enabled, "Pass the generated image through untouched")
	flag.Parse()

	if sourcePath == "" || generatedPath == "" || outPath == "" {
		flag.Usage()
		return errors.New("-source, -generated and -out are required")
	}

	mode, err := compositor.ParseMode(modeName)
	if err != nil {
		return err
	}
	format, err := images.FormatFromExt(filepath.Ext(outPath))
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.LogLevel)

	source, err := readImage(sourcePath)
	if err != nil {
		return err
	}
	defer source.Close()
	generated, err := readImage(generatedPath)
	if err != nil {
		return err
	}
	defer generated.Close()

	cfg.Enabled = !disabled
	p, closeFn, err := preserve.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := p.Preserve(source, generated, feather, mode)
	if err != nil {
		return err
	}
	defer res.Image.Close()

	data, err := images.Encode(res.Image, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return errors.Wrap(err, "write output")
	}

	applied := "passthrough"
	if res.Applied {
		applied = fmt.Sprintf("mode=%s strategy=%s", res.Mode, res.Strategy)
	}
	fmt.Printf("%s: %s (%s)\n", outPath, applied, res.Timings)
	return nil
}

func readImage(path string) (gocv.Mat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "read image")
	}
	mat, err := images.Decode(data)
	if err != nil {
		return gocv.NewMat(), errors.Wrapf(preserve.ErrInvalidInput, "%s: %v", path, err)
	}
	return mat, nil
}

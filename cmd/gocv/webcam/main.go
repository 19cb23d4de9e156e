// Command webcam overlays the refined eye mask on a live camera feed.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/nvr-ai/go-eyes/config"
	"github.com/nvr-ai/go-eyes/logger"
	"github.com/nvr-ai/go-eyes/mask"
	"github.com/nvr-ai/go-eyes/preserve"
	"github.com/nvr-ai/go-eyes/profiler"
	"gocv.io/x/gocv"
)

func main() {
	deviceID := flag.Int("device", 0, "Video capture device")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Println(err)
		return
	}
	logger.SetLevel(cfg.LogLevel)
	defer logger.Sync()

	// open webcam
	webcam, err := gocv.OpenVideoCapture(*deviceID)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer webcam.Close()

	// open display window
	window := gocv.NewWindow("Eye Mask")
	defer window.Close()

	img := gocv.NewMat()
	defer img.Close()

	p, closeFn, err := preserve.NewFromConfig(cfg)
	if err != nil {
		logger.Error("cannot build eye detector", logger.LoggerOptions{Key: "error", Data: err.Error()})
		return
	}
	defer closeFn()
	d := p.Detector

	green := color.RGBA{0, 255, 0, 0}
	stats := profiler.NewStageStats()

	// FPS tracking variables
	fps := 0.0
	frameCount := 0
	lastTime := time.Now()

	fmt.Printf("start reading camera device: %v\n", *deviceID)
	for {
		if ok := webcam.Read(&img); !ok {
			fmt.Printf("cannot read device %v\n", *deviceID)
			return
		}
		if img.Empty() {
			continue
		}

		frameCount++
		currentTime := time.Now()
		elapsed := currentTime.Sub(lastTime).Seconds()
		if elapsed >= 1.0 {
			fps = float64(frameCount) / elapsed
			frameCount = 0
			lastTime = currentTime
			logger.Debug("stage timings", logger.LoggerOptions{Key: "report", Data: stats.Report()})
		}

		tt := profiler.NewTimeTracker()
		done := tt.StartOperation("detect")
		raw, strategy := d.Detect(img)
		done()

		done = tt.StartOperation("refine")
		alpha := mask.Refine(raw, img, cfg.FeatherRadiusPx)
		done()
		stats.Add(tt.Durations())

		overlay := gocv.NewMat()
		gocv.CvtColor(alpha, &overlay, gocv.ColorGrayToBGR)
		gocv.AddWeighted(img, 1, overlay, 0.5, 0, &img)
		overlay.Close()
		alpha.Close()
		raw.Close()

		label := fmt.Sprintf("%s | FPS: %.2f", strategy, fps)
		gocv.PutText(&img, label, image.Pt(10, 30), gocv.FontHersheyPlain, 1.5, green, 2)

		// show the image in the window, and wait 1 millisecond
		window.IMShow(img)
		window.WaitKey(1)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"periph.io/x/conn/v3/physic"

	"rockkit/internal/render"
	"rockkit/internal/rgb565"
	"rockkit/internal/st7789"
	"rockkit/internal/version"
	"rockkit/internal/video"
)

func main() {

	// Logger
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	mainCommand := filepath.Base(os.Args[0])

	debugMode := flag.Bool("d", false, "Enable debug mode")
	showVersion := flag.Bool("version", false, "Show the version number")

	text := flag.String("text", "", "Text to render on the panel")
	imagePath := flag.String("image", "", "PNG or JPEG file to show on the panel")
	clear := flag.Bool("clear", false, "Clear the panel and exit")
	fontPath := flag.String("font", "", "TTF font path (built-in bitmap font when empty)")
	fontSize := flag.Float64("fontsize", 24, "Font size in points")
	fps := flag.Int("fps", video.DefaultFPS, "Video playback frame rate")

	spiPort := flag.String("spi-port", "", "SPI port name (empty selects the first port)")
	spiSpeed := flag.Int64("spi-speed", 40_000_000, "SPI clock in Hz")
	dcPin := flag.Int("dc-pin", st7789.DefaultDCPin, "Linux GPIO number of the DC line (gpiochip4 line 12)")
	rstPin := flag.Int("rst-pin", st7789.DefaultRSTPin, "Linux GPIO number of the RST line (gpiochip1 line 5)")
	chipDC := flag.String("gpio-chip-dc", st7789.DefaultGPIOChipDC, "GPIO chip holding the DC line")
	chipRST := flag.String("gpio-chip-rst", st7789.DefaultGPIOChipRST, "GPIO chip holding the RST line")
	rotate := flag.Int("rotate", 90, "Panel rotation in degrees (0, 90, 180, 270)")

	flag.Usage = func() {
		fmt.Printf("\nUsage: %s [OPTIONS] [VIDEO_FILE]\n", mainCommand)
		fmt.Printf("\nDrive an ST7789V SPI TFT panel: show text, an image, clear it,\n")
		fmt.Printf("or play a video file through ffmpeg.\n")
		fmt.Printf("\nOptions:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("Version %s\n", version.AppVersion.String())
		os.Exit(0)
	}

	if *debugMode {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: time.RFC3339Nano})
		logrus.Printf("Debug mode activated")
	}

	videoPath := ""
	switch {
	case flag.NArg() == 1:
		videoPath = flag.Arg(0)
	case flag.NArg() > 1:
		fmt.Printf("\n%s accepts at most one video file\n", mainCommand)
		flag.Usage()
		os.Exit(1)
	}

	sources := 0
	for _, set := range []bool{*text != "", *imagePath != "", *clear, videoPath != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		fmt.Printf("\nExactly one of --text, --image, --clear or a video file is required\n")
		flag.Usage()
		os.Exit(1)
	}

	rotation, err := parseRotation(*rotate)
	if err != nil {
		logrus.Fatalf("%v", err)
	}

	// Validate inputs before any hardware is touched.
	var face font.Face
	var srcImg image.Image
	if *text != "" {
		f, err := render.LoadFace(*fontPath, *fontSize)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		face = f
	}
	if *imagePath != "" {
		srcImg, err = loadImage(*imagePath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
	}
	if videoPath != "" {
		if _, err := os.Stat(videoPath); err != nil {
			logrus.Fatalf("Unable to access video file: %v", err)
		}
	}

	panel := st7789.DefaultOpts
	panel.Rotation = rotation
	panel.SpeedHz = physic.Frequency(*spiSpeed) * physic.Hertz

	dev, err := st7789.Open(st7789.OpenOpts{
		SPIPort:     *spiPort,
		GPIOChipDC:  *chipDC,
		GPIOChipRST: *chipRST,
		DCPin:       *dcPin,
		RSTPin:      *rstPin,
		Panel:       panel,
	})
	if err != nil {
		logrus.Fatalf("Unable to open display: %v", err)
	}
	defer dev.Close()

	if err := dev.Reset(); err != nil {
		logrus.Fatalf("Unable to reset display: %v", err)
	}
	if err := dev.Init(); err != nil {
		logrus.Fatalf("Unable to initialize display: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *clear:
		err = showFrame(dev, rgb565.NewImage(dev.Bounds()))
	case *text != "":
		err = showText(dev, face, *text)
		if err == nil {
			<-ctx.Done()
			err = showFrame(dev, rgb565.NewImage(dev.Bounds()))
		}
	case srcImg != nil:
		err = showFrame(dev, fitToPanel(dev, srcImg))
		if err == nil {
			<-ctx.Done()
			err = showFrame(dev, rgb565.NewImage(dev.Bounds()))
		}
	case videoPath != "":
		player := video.NewPlayer(dev, *fps)
		err = player.Play(ctx, videoPath)
		if err == nil {
			err = showFrame(dev, rgb565.NewImage(dev.Bounds()))
		}
	}
	if err != nil {
		logrus.Fatalf("%v", err)
	}

	if err := dev.Halt(); err != nil {
		logrus.Fatalf("Unable to halt display: %v", err)
	}
}

func parseRotation(degrees int) (st7789.Rotation, error) {
	switch degrees {
	case 0:
		return st7789.Rotation0, nil
	case 90:
		return st7789.Rotation90, nil
	case 180:
		return st7789.Rotation180, nil
	case 270:
		return st7789.Rotation270, nil
	default:
		return 0, fmt.Errorf("unsupported rotation %d, want 0, 90, 180 or 270", degrees)
	}
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("unable to decode image %s: %w", path, err)
	}
	return img, nil
}

func showFrame(dev *st7789.Dev, img *rgb565.Image) error {
	return dev.WriteFrame(dev.Bounds(), img.Pix)
}

// fitToPanel rescales src to the panel geometry.
func fitToPanel(dev *st7789.Dev, src image.Image) *rgb565.Image {
	dst := rgb565.NewImage(dev.Bounds())
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func showText(dev *st7789.Dev, face font.Face, text string) error {
	img := rgb565.NewImage(dev.Bounds())
	bounds := img.Bounds()
	h := render.LineHeight(face)
	lines := render.Wrap(text, bounds.Dx()/maxInt(render.TextWidth(face, "0"), 1))
	y := (bounds.Dy()-len(lines)*h)/2 + render.Ascent(face)
	for _, line := range lines {
		render.CenteredLabel(img, face, color.White, y, line)
		y += h
	}
	return showFrame(dev, img)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

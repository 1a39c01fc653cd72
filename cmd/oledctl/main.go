package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"

	"rockkit/internal/face"
	"rockkit/internal/radio"
	"rockkit/internal/render"
	"rockkit/internal/screen"
	"rockkit/internal/sysmon"
	"rockkit/internal/version"
)

func main() {

	// Logger
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	mainCommand := filepath.Base(os.Args[0])

	// Debug Mode
	debugMode := flag.Bool("d", false, "Enable debug mode")

	// Simulation Mode
	simulationMode := flag.Bool("s", false, "Enable simulation mode")

	bus := flag.String("bus", "", "I2C bus name (empty selects the first bus)")
	fontPath := flag.String("font", "", "TTF font path (built-in bitmap font when empty)")
	fontSize := flag.Float64("fontsize", 16, "Font size in points")

	// Usage
	flag.Usage = func() {
		fmt.Printf("\nUsage: %s [OPTIONS] COMMAND [ARGS]\n", mainCommand)
		fmt.Printf("\nSSD1306 OLED panel utilities\n")
		fmt.Printf("\nOptions:\n")
		flag.PrintDefaults()
		fmt.Printf("\nCommands:\n")
		fmt.Printf("  clock             Show the current time\n")
		fmt.Printf("  monitor           Show a system monitoring dashboard\n")
		fmt.Printf("  radio STATION     Play an internet radio station and show its title\n")
		fmt.Printf("  text TEXT         Show wrapped text\n")
		fmt.Printf("  scroll TEXT       Scroll text horizontally\n")
		fmt.Printf("  vscroll TEXT      Scroll text vertically\n")
		fmt.Printf("  heart             Show a beating heart\n")
		fmt.Printf("  pacman            Show the dot-eating arcade loop\n")
		fmt.Printf("  version           Show the version number\n")
		fmt.Printf("\nRun '%s COMMAND --help' for more information on a command.\n", mainCommand)
	}

	// radio command
	radioCmd := flag.NewFlagSet("radio", flag.ExitOnError)
	apiPort := radioCmd.Int64("port", 0, "HTTP control API port (0 disables the API)")
	apiKey := radioCmd.String("api-key", "", "x-api-key required by the control API")
	stationsPath := radioCmd.String("stations", "", "Stations file (embedded list when empty)")
	radioCmd.Usage = func() {
		fmt.Printf("\nUsage: %s radio [OPTIONS] STATION\n", mainCommand)
		fmt.Printf("\nPlay an internet radio station (a station name or a stream URL)\n")
		fmt.Printf("\nOptions:\n")
		radioCmd.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *debugMode {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: time.RFC3339Nano})
		logrus.Printf("Debug mode activated")
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	if command == "version" {
		fmt.Printf("Version %s\n", version.AppVersion.String())
		return
	}

	f, err := render.LoadFace(*fontPath, *fontSize)
	if err != nil {
		logrus.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scr := screen.New(*bus, *simulationMode)
	if err := scr.Start(); err != nil {
		logrus.Fatalf("%v", err)
	}
	defer func() {
		scr.ShowImage(face.Clear(scr.Bounds()))
		scr.Stop()
	}()

	b := scr.Bounds()

	switch command {
	case "clock":
		runFrames(ctx, scr, time.Second, func(int) image.Image {
			return face.Clock(b, f, time.Now())
		})

	case "monitor":
		runFrames(ctx, scr, 2*time.Second, func(int) image.Image {
			return face.Monitor(b, f, sysmon.Collect())
		})

	case "text":
		scr.ShowImage(face.Text(b, f, textArg(mainCommand, command, args)))
		<-ctx.Done()

	case "scroll":
		s := textArg(mainCommand, command, args)
		runFrames(ctx, scr, face.Tick, func(tick int) image.Image {
			return face.Marquee(b, f, s, tick)
		})

	case "vscroll":
		s := textArg(mainCommand, command, args)
		runFrames(ctx, scr, face.Tick, func(tick int) image.Image {
			return face.VScroll(b, f, s, tick)
		})

	case "heart":
		runFrames(ctx, scr, 500*time.Millisecond, func(tick int) image.Image {
			return face.Heart(b, tick)
		})

	case "pacman":
		runFrames(ctx, scr, 100*time.Millisecond, func(tick int) image.Image {
			return face.Pacman(b, tick)
		})

	case "radio":
		radioCmd.Parse(args)
		if radioCmd.NArg() != 1 {
			fmt.Printf("\n\"%s radio\" requires exactly one STATION argument\n", mainCommand)
			radioCmd.Usage()
			os.Exit(1)
		}
		runRadio(ctx, stop, scr, f, radioCmd.Arg(0), *stationsPath, *apiPort, *apiKey)

	default:
		fmt.Printf("\n%s is not an oledctl command\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func textArg(mainCommand, command string, args []string) string {
	if len(args) == 0 {
		fmt.Printf("\n\"%s %s\" requires a TEXT argument\n", mainCommand, command)
		os.Exit(1)
	}
	return strings.Join(args, " ")
}

// runFrames drives one frame generator until the context ends, passing it an
// incrementing animation tick.
func runFrames(ctx context.Context, scr *screen.Screen, interval time.Duration, frame func(tick int) image.Image) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for tick := 0; ; tick++ {
		scr.ShowImage(frame(tick))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runRadio(ctx context.Context, stop func(), scr *screen.Screen, f font.Face, arg, stationsPath string, apiPort int64, apiKey string) {
	stations, err := radio.LoadStations(stationsPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	station, err := radio.Resolve(stations, arg)
	if err != nil {
		logrus.Fatalf("%v", err)
	}

	player := radio.NewPlayer(station.Url)
	if err := player.Start(); err != nil {
		logrus.Fatalf("%v", err)
	}
	defer player.Stop()

	if apiPort != 0 {
		api := radio.NewApi(apiPort, apiKey, station.Name, player, stop)
		api.Start()
		defer api.Stop()
	}

	b := scr.Bounds()
	runFrames(ctx, scr, face.Tick, func(tick int) image.Image {
		return face.RadioTitle(b, f, station.Name, player.Title(), tick)
	})
}

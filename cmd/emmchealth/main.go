package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"rockkit/internal/emmc"
	"rockkit/internal/version"
)

const defaultDevice = "/dev/mmcblk0"

func main() {

	// Logger
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	mainCommand := filepath.Base(os.Args[0])

	debugMode := flag.Bool("d", false, "Enable debug mode")
	showVersion := flag.Bool("version", false, "Show the version number")
	noColor := flag.Bool("no-color", false, "Disable colorized output")

	flag.Usage = func() {
		fmt.Printf("\nUsage: %s [OPTIONS] [DEVICE]\n", mainCommand)
		fmt.Printf("\neMMC health report built from 'mmc extcsd read' (default device: %s)\n", defaultDevice)
		fmt.Printf("\nOptions:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("Version %s\n", version.AppVersion.String())
		return
	}

	if *debugMode {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: time.RFC3339Nano})
		logrus.Printf("Debug mode activated")
	}

	if flag.NArg() > 1 {
		fmt.Printf("\n%s accepts at most one device path\n", mainCommand)
		flag.Usage()
		os.Exit(1)
	}

	device := defaultDevice
	if flag.NArg() == 1 {
		device = flag.Arg(0)
	} else if _, err := os.Stat(device); err != nil {
		// The boot device is not always mmcblk0; try its siblings.
		for i := 1; i < 4; i++ {
			alt := fmt.Sprintf("/dev/mmcblk%d", i)
			if _, err := os.Stat(alt); err == nil {
				logrus.Warnf("%s not found, using %s", device, alt)
				device = alt
				break
			}
		}
	}

	data, err := emmc.Read(context.Background(), device)
	if err != nil {
		logrus.Fatalf("%v", err)
	}

	color := !*noColor && isTTY(os.Stdout)
	emmc.WriteReport(os.Stdout, emmc.BaseDevice(device), data, color)
}

func isTTY(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	return err == nil
}

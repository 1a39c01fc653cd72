package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"rockkit/internal/fan"
	"rockkit/internal/version"
)

func main() {

	// Logger
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	mainCommand := filepath.Base(os.Args[0])

	debugMode := flag.Bool("d", false, "Enable debug mode")
	showVersion := flag.Bool("version", false, "Show the version number")
	configPath := flag.String("c", "", "Location of the fan config file (embedded default when empty)")
	once := flag.Bool("once", false, "Evaluate the curve once and exit")

	flag.Usage = func() {
		fmt.Printf("\nUsage: %s [OPTIONS]\n", mainCommand)
		fmt.Printf("\nPWM fan controller driven by thermal zone readings\n")
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

	cfg, err := fan.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}

	ctrl := fan.NewController(cfg)

	if *once {
		if err := ctrl.Start(); err != nil {
			logrus.Fatalf("%v", err)
		}
		tempC, duty, _, err := ctrl.Step()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Temp %.1fC, duty %d/255", tempC, duty)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Run(ctx); err != nil {
		logrus.Fatalf("%v", err)
	}
}

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/lightcurve-labs/iqstream/internal/config"
	"github.com/lightcurve-labs/iqstream/internal/engine"
	"github.com/lightcurve-labs/iqstream/internal/utils"
	"github.com/lightcurve-labs/iqstream/pkg/audiodevice"
)

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	listDevices := flag.Bool("listDevices", false, "List the available capture and playback devices, then exit.")
	recording := flag.String("file", "", "Play an I/Q recording instead of capturing from a device.")
	flag.Parse()

	config.LoadConfig(*configFilePath)
	logFilePointer, err := utils.ConfigureDefaultLogger(
		viper.GetString("loglevel"),
		viper.GetString("logfile"),
		slog.HandlerOptions{},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not configure logger:", err)
		os.Exit(1)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	// --------------------------------------------------------------------------------

	backend, err := audiodevice.NewMalgoBackend()
	if err != nil {
		slog.Error("could not initialize audio backend", "err", err)
		os.Exit(1)
	}
	defer backend.Close()

	if *listDevices {
		printDevices(backend)
		return
	}

	// --------------------------------------------------------------------------------

	eng := engine.New(backend, nil, config.EngineConfig())

	bufferMs := viper.GetInt("buffer_ms")
	outputID := viper.GetString("output_device")
	if *recording != "" {
		err = eng.OpenFile(*recording, outputID, bufferMs)
	} else {
		err = eng.OpenDevice(
			viper.GetString("input_device"),
			outputID,
			viper.GetInt("sample_rate"),
			bufferMs,
		)
	}
	if err != nil {
		slog.Error("could not open session", "err", err)
		os.Exit(1)
	}

	if err := eng.Play(); err != nil {
		slog.Error("could not start session", "err", err)
		os.Exit(1)
	}
	slog.Info("streaming",
		"outputRate", eng.SampleRate(),
		"bufferFrames", eng.BufferSizeFrames(),
		"decimationStages", eng.DecimationStageCount(),
	)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	slog.Info("stopping")
	eng.Stop()
}

func printDevices(backend *audiodevice.MalgoBackend) {
	captureDevices, err := backend.ListCaptureDevices()
	if err != nil {
		slog.Error("could not list capture devices", "err", err)
		os.Exit(1)
	}
	playbackDevices, err := backend.ListPlaybackDevices()
	if err != nil {
		slog.Error("could not list playback devices", "err", err)
		os.Exit(1)
	}

	fmt.Println("Capture devices:")
	for _, d := range captureDevices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("  %s %s (%s)\n", marker, d.Name, d.ID)
	}
	fmt.Println("Playback devices:")
	for _, d := range playbackDevices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("  %s %s (%s)\n", marker, d.Name, d.ID)
	}
}

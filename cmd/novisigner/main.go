// Command novisigner runs the firmware-core main loop against a
// file-backed flash image and a real serial transport, standing in for
// the MCU's flash peripheral and CDC-ACM endpoint.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/noviinc/novisigner/internal/config"
	"github.com/noviinc/novisigner/internal/device"
	"github.com/noviinc/novisigner/internal/flash"
	"github.com/noviinc/novisigner/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to provisioning/runtime config")
	verbose := flag.Bool("v", false, "enable debug logging")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var logger *slog.Logger
	if *logFormat == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	uid, err := cfg.UID()
	if err != nil {
		log.Fatalf("invalid device UID: %v", err)
	}

	fs, err := flash.OpenFileStore(cfg.Device.FlashImagePath)
	if err != nil {
		log.Fatalf("open flash image failed: %v", err)
	}

	if cfg.Serial.Port == "" {
		log.Fatalf("config.serial.port is required")
	}
	readTimeout := time.Duration(cfg.Serial.ReadTimeout) * time.Second
	if readTimeout <= 0 {
		readTimeout = 2 * time.Second
	}
	port, err := transport.OpenSerialPort(cfg.Serial.Port, cfg.Serial.BaudRate, readTimeout)
	if err != nil {
		log.Fatalf("open serial port failed: %v", err)
	}
	defer port.Close()

	state := device.NewDeviceState(fs, uid)
	endpoint := transport.NewSerialEndpoint(port)
	dispatcher := device.NewDispatcher(state, endpoint, device.NoopStatusSink{}, logger)

	logger.Info("novisigner running",
		"flash_image", cfg.Device.FlashImagePath,
		"serial_port", cfg.Serial.Port,
		"vendor_id", device.USBVendorID,
		"product_id", device.USBProductID,
	)

	for {
		if err := dispatcher.RunOnce(); err != nil {
			logger.Warn("dispatch turn failed", "err", err)
		}
	}
}

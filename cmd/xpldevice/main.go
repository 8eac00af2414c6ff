// Command xpldevice runs an XPLPro device on a serial port, driven by a TOML
// config file. When the host plugin connects it registers the configured
// datarefs and commands, subscribes to updates, and logs every value the
// host sends. It is both a smoke-test tool for panel wiring and a template
// for real device binaries.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GioCC/XPLPro-Official/logger"
	"github.com/GioCC/XPLPro-Official/transport"
	"github.com/GioCC/XPLPro-Official/xplpro"
)

func main() {
	configPath := flag.String("config", "xpldevice.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, _ := parseLogLevel(cfg.LogLevel) // validated by loadConfig
	log := logger.NewSlog(level, false)

	if err := run(cfg, log); err != nil {
		log.Fatal("device stopped", "error", err)
	}
}

func run(cfg fileConfig, log logger.Logger) error {
	port, err := transport.OpenSerial(cfg.Port, cfg.Baud)
	if err != nil {
		return err
	}
	defer port.Close()

	log.Info("serial port open", "port", port.Name(), "baud", cfg.Baud)

	engine, err := xplpro.New(port,
		xplpro.WithLogger(log),
		xplpro.WithFloatPrecision(cfg.FloatPrecision),
		xplpro.WithMaxFrameSize(cfg.MaxFrameSize),
	)
	if err != nil {
		return err
	}

	handler := xplpro.HandlerFuncs{
		Ready:      func() { subscribe(engine, cfg, log) },
		Disconnect: func() { log.Warn("session lost, waiting for the host") },
		Value:      func(v xplpro.Value) { logValue(log, v) },
	}

	if err := engine.Begin(cfg.DeviceName, handler); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			log.Info("shutting down")
			engine.RequestReset()
			return nil
		case <-ticker.C:
			engine.Step()
		}
	}
}

// subscribe registers everything the config names. It runs inside the ready
// callback, where registration calls are allowed to poll for their responses.
func subscribe(engine *xplpro.Engine, cfg fileConfig, log logger.Logger) {
	for _, d := range cfg.Datarefs {
		h := engine.RegisterDataRef(d.Name)
		if h == xplpro.HandleInvalid {
			log.Warn("dataref not available", "name", d.Name)
			continue
		}

		var err error
		if d.Element != nil {
			err = engine.RequestUpdatesElement(h, d.RateMs, d.Precision, *d.Element)
		} else {
			err = engine.RequestUpdates(h, d.RateMs, d.Precision)
		}
		if err != nil {
			log.Error("subscription failed", "name", d.Name, "error", err)
		}
	}

	for _, c := range cfg.Commands {
		if engine.RegisterCommand(c.Name) == xplpro.HandleInvalid {
			log.Warn("command not available", "name", c.Name)
		}
	}

	if cfg.FlowRate > 0 {
		if err := engine.SetFlowRate(cfg.FlowRate); err != nil {
			log.Error("flow rate request failed", "error", err)
		}
	}
}

func logValue(log logger.Logger, v xplpro.Value) {
	switch v.Kind {
	case xplpro.KindInt:
		log.Info("value", "handle", v.Handle, "kind", v.Kind.String(), "value", v.Int)
	case xplpro.KindFloat, xplpro.KindDouble:
		log.Info("value", "handle", v.Handle, "kind", v.Kind.String(), "value", v.Float)
	case xplpro.KindIntArray:
		log.Info("value", "handle", v.Handle, "kind", v.Kind.String(), "element", v.Element, "value", v.Int)
	case xplpro.KindFloatArray:
		log.Info("value", "handle", v.Handle, "kind", v.Kind.String(), "element", v.Element, "value", v.Float)
	case xplpro.KindString:
		log.Info("value", "handle", v.Handle, "kind", v.Kind.String(), "value", v.Str)
	}
}

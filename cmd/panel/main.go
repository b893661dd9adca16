package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/touchmodbus/panel/cmd/panel/subcmd"
	"github.com/touchmodbus/panel/hardware/touch"
	"github.com/touchmodbus/panel/internal/panel"
	"github.com/touchmodbus/panel/internal/state"
	state_new "github.com/touchmodbus/panel/internal/state/new"
	"github.com/touchmodbus/panel/internal/tele"
	"github.com/touchmodbus/panel/internal/ui"
	"github.com/touchmodbus/panel/log2"
)

var log = log2.NewStderr(log2.LDebug)

// set by build: -ldflags "-X main.BuildVersion=..."
var BuildVersion string = "unknown"

var modules = []subcmd.Mod{
	{Name: "run", Usage: "touch panel writing to modbus", Main: runMain},
	{Name: "calibrate", Usage: "touch calibration, result is stored", Main: calibrateMain},
}

func main() {
	flagConfig := flag.String("config", "panel.hcl", "")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [command]\n", os.Args[0])
		flag.PrintDefaults()
		subcmd.PrintUsage(flag.CommandLine.Output(), modules)
	}
	flag.Parse()

	mod, err := subcmd.Parse(flag.Args(), modules)
	if err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	if subcmd.SdNotify("start") {
		// under systemd, journal adds timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}
	log.Infof("panel version=%s command=%s", BuildVersion, mod.Name)

	config := state.MustReadConfig(log, state.NewOsFullReader(), *flagConfig)
	ctx, g := state_new.NewContext(log, tele.New())
	g.BuildVersion = BuildVersion

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigch
		g.Log.Infof("signal=%v stopping", s)
		g.Stop()
	}()

	if err := mod.Main(ctx, config); err != nil {
		g.Fatal(err)
	}

	g.StopWait(5 * time.Second)
	g.Error(g.CloseHardware(), "close hardware")
	g.Tele.Close()
	g.Log.Infof("panel stopped")
}

func runMain(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	g.Log.Debugf("config=%+v", g.Config)

	if err := g.InitHardware(ctx); err != nil {
		return err
	}
	if err := g.InitCalibration(ctx); err != nil {
		return errors.Annotate(err, "touch calibration")
	}
	u, err := ui.New(ctx)
	if err != nil {
		return errors.Annotate(err, "ui init")
	}
	c, err := panel.New(ctx, u)
	if err != nil {
		return errors.Annotate(err, "panel init")
	}
	c.Build(ctx)
	defer c.Close()

	if period := subcmd.WatchdogPeriod(); period != 0 {
		wd := u.Every(period, subcmd.Watchdog)
		defer wd.Stop()
		g.Log.Debugf("systemd watchdog period=%v", period)
	}
	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Debugf("panel init complete")

	u.Run(ctx)
	return nil
}

// calibrateMain runs touch calibration and stores result, regardless of saved data.
func calibrateMain(ctx context.Context, config *state.Config) error {
	config.Hardware.Touch.RepeatCalibration = true
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)

	if err := g.InitCalibration(ctx); err != nil {
		return errors.Annotate(err, "touch calibration")
	}
	if absent, ok := g.Hardware.Touch.Sensor.(touch.Absent); ok {
		return errors.Annotate(absent.Err, "touch calibration")
	}
	g.Log.Infof("calibration=%s stored in %s", g.Hardware.Touch.Calibration.String(), g.Hardware.Touch.Persist.Dir())
	return nil
}

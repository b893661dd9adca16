// Sub-commands of panel binary and systemd integration.
package subcmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/touchmodbus/panel/internal/state"
)

type Mod struct {
	Name  string
	Usage string
	Main  func(context.Context, *state.Config) error
}

// Parse selects module by first argument. No arguments select first module.
func Parse(args []string, modules []Mod) (*Mod, error) {
	if len(modules) == 0 {
		panic("code error modules empty")
	}
	if len(args) == 0 {
		return &modules[0], nil
	}
	if len(args) > 1 {
		return nil, fmt.Errorf("extra arguments after command: %v", args[1:])
	}
	command := args[0]
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("unknown command='%s'", command)
}

// PrintUsage lists modules, first is default.
func PrintUsage(w io.Writer, modules []Mod) {
	fmt.Fprintf(w, "commands:\n")
	for i, m := range modules {
		def := ""
		if i == 0 {
			def = " (default)"
		}
		fmt.Fprintf(w, "  %-10s %s%s\n", m.Name, m.Usage, def)
	}
}

// SdNotify returns true when running under systemd.
func SdNotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}

// WatchdogPeriod is how often to ping systemd watchdog, 0 when disabled.
// Half of WatchdogSec, as sd_watchdog_enabled(3) suggests.
func WatchdogPeriod() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Print("sdnotify watchdog: ", errors.ErrorStack(err))
		return 0
	}
	return d / 2
}

// Watchdog pings systemd. Run it as UI loop timer: stuck loop misses pings.
func Watchdog(context.Context) { SdNotify(daemon.SdNotifyWatchdog) }

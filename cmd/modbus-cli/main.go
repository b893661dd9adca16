// Interactive Modbus RTU tool: read and write holding registers of the panel slave.
package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/touchmodbus/panel/hardware/modbus"
	"github.com/touchmodbus/panel/helpers/cli"
	"github.com/touchmodbus/panel/internal/state"
	state_new "github.com/touchmodbus/panel/internal/state/new"
	"github.com/touchmodbus/panel/internal/tele"
	"github.com/touchmodbus/panel/log2"
)

const usage = `syntax: commands separated by whitespace
(main)
- r ADDR        read holding register, show value
- w ADDR VALUE  write single register
- sN            pause N milliseconds
ADDR and VALUE accept 0x prefix, ADDR low 16 bits go on the wire

(meta)
- log=yes  enable transport debug logging
- log=no   disable transport debug logging
- loop=N   repeat N times all commands on this line
- help     show this text
`

var log = log2.NewStderr(log2.LDebug)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := cmdline.String("config", "", "panel config file, serial settings are taken from hardware.modbus")
	device := cmdline.String("device", "", "serial device, overrides config")
	baud := cmdline.Int("baud", 0, "overrides config")
	slave := cmdline.Int("slave", 0, "slave id, overrides config")
	timeoutMs := cmdline.Int("timeout-ms", 0, "response timeout, overrides config")
	_ = cmdline.Parse(os.Args[1:])

	log.SetFlags(log2.LInteractiveFlags)

	config := new(state.Config)
	if *configPath != "" {
		config = state.MustReadConfig(log, state.NewOsFullReader(), *configPath)
	}
	mc := &config.Hardware.Modbus
	if *device != "" {
		mc.Device = *device
	}
	if *baud != 0 {
		mc.Baud = *baud
	}
	if *slave != 0 {
		mc.SlaveID = *slave
	}
	if *timeoutMs != 0 {
		mc.TimeoutMs = *timeoutMs
	}

	ctx, g := state_new.NewContext(log, tele.New())
	g.MustInit(ctx, config)
	if _, err := g.Modbus(); err != nil {
		g.Fatal(err)
	}
	defer g.CloseHardware()

	cli.MainLoop("modbus-cli", newExecutor(ctx), newCompleter())
}

func newCompleter() prompt.Completer {
	suggests := []prompt.Suggest{
		{Text: "r", Description: "r ADDR read holding register"},
		{Text: "w", Description: "w ADDR VALUE write single register"},
		{Text: "sN", Description: "pause for N ms"},
		{Text: "loop=N", Description: "repeat line N times"},
		{Text: "log=yes", Description: "enable transport debug logging"},
		{Text: "log=no", Description: "disable transport debug logging"},
		{Text: "help"},
	}

	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterFuzzy(suggests, d.GetWordBeforeCursor(), true)
	}
}

func newExecutor(ctx context.Context) func(string) {
	g := state.GetGlobal(ctx)
	return func(line string) {
		s, err := parseLine(line)
		if err != nil {
			g.Log.Errorf(errors.ErrorStack(err))
			return
		}
		if err = s.Do(ctx); err != nil {
			g.Log.Errorf(errors.ErrorStack(err))
		}
	}
}

type step struct {
	name string
	f    func(context.Context) error
}

// script is one input line: steps run in order, whole list repeated loop times.
type script struct {
	name  string
	loop  uint
	steps []step
}

func (s *script) Do(ctx context.Context) error {
	n := s.loop
	if n == 0 {
		n = 1
	}
	for i := uint(1); i <= n; i++ {
		if n > 1 {
			log2.ContextValueLogger(ctx).Debugf("loop %d/%d", i, n)
		}
		for _, st := range s.steps {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := st.f(ctx); err != nil {
				return errors.Annotate(err, st.name)
			}
		}
	}
	return nil
}

func parseLine(line string) (*script, error) {
	s := &script{name: line}
	words := strings.Fields(line)
	for i := 0; i < len(words); i++ {
		word := words[i]
		switch {
		case word == "help":
			s.steps = append(s.steps, step{name: word, f: doUsage})

		case word == "log=yes":
			s.steps = append(s.steps, newLogLevel(word, log2.LDebug))

		case word == "log=no":
			s.steps = append(s.steps, newLogLevel(word, log2.LError))

		case strings.HasPrefix(word, "loop="):
			if s.loop != 0 {
				return nil, errors.Errorf("multiple loop commands, expected at most one")
			}
			n, err := strconv.ParseUint(word[5:], 10, 32)
			if err != nil {
				return nil, errors.Annotatef(err, "word=%s", word)
			}
			if n == 0 {
				return nil, errors.NotValidf("word=%s", word)
			}
			s.loop = uint(n)

		case word == "r":
			if i+1 >= len(words) {
				return nil, errors.Errorf("r: expected ADDR")
			}
			address, err := parseAddress(words[i+1])
			if err != nil {
				return nil, err
			}
			i++
			s.steps = append(s.steps, newRead(address))

		case word == "w":
			if i+2 >= len(words) {
				return nil, errors.Errorf("w: expected ADDR VALUE")
			}
			address, err := parseAddress(words[i+1])
			if err != nil {
				return nil, err
			}
			value, err := strconv.ParseUint(words[i+2], 0, 16)
			if err != nil {
				return nil, errors.Annotatef(err, "value=%s", words[i+2])
			}
			i += 2
			s.steps = append(s.steps, newWrite(address, uint16(value)))

		case len(word) > 1 && word[0] == 's':
			ms, err := strconv.ParseUint(word[1:], 10, 32)
			if err != nil {
				return nil, errors.Annotatef(err, "word=%s", word)
			}
			s.steps = append(s.steps, newSleep(time.Duration(ms)*time.Millisecond))

		default:
			return nil, errors.Errorf("invalid command: '%s'", word)
		}
	}
	return s, nil
}

func parseAddress(s string) (uint32, error) {
	a, err := strconv.ParseUint(s, 0, 32)
	return uint32(a), errors.Annotatef(err, "address=%s", s)
}

func doUsage(ctx context.Context) error {
	log2.ContextValueLogger(ctx).Infof(usage)
	return nil
}

func newLogLevel(name string, level log2.Level) step {
	return step{name: name, f: func(ctx context.Context) error {
		g := state.GetGlobal(ctx)
		t, err := g.Modbus()
		if err != nil {
			return err
		}
		if rtu, ok := t.(*modbus.RTU); ok {
			rtu.Log.SetLevel(level)
		}
		return nil
	}}
}

func newRead(address uint32) step {
	return step{name: "r:" + strconv.FormatUint(uint64(address), 16), f: func(ctx context.Context) error {
		g := state.GetGlobal(ctx)
		t, err := g.Modbus()
		if err != nil {
			return err
		}
		v, status := t.ReadValue(address)
		if !status.Ok() {
			return errors.Errorf("read address=0x%x status=%s", address, status.String())
		}
		g.Log.Infof("< 0x%x = %d (0x%04x)", address, v, v)
		return nil
	}}
}

func newWrite(address uint32, value uint16) step {
	req := modbus.WriteRequest{Address: address, Value: value}
	return step{name: req.String(), f: func(ctx context.Context) error {
		g := state.GetGlobal(ctx)
		t, err := g.Modbus()
		if err != nil {
			return err
		}
		if status := t.WriteValue(address, value); !status.Ok() {
			return errors.Errorf("%s status=%s", req.String(), status.String())
		}
		g.Log.Infof("> %s ok", req.String())
		return nil
	}}
}

func newSleep(d time.Duration) step {
	return step{name: "s" + d.String(), f: func(ctx context.Context) error {
		tmr := time.NewTimer(d)
		defer tmr.Stop()
		select {
		case <-tmr.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
}

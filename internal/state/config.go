package state

import (
	"path/filepath"
	"sync"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/touchmodbus/panel/hardware/modbus"
	"github.com/touchmodbus/panel/helpers"
	"github.com/touchmodbus/panel/internal/tele"
	"github.com/touchmodbus/panel/log2"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Hardware struct {
		Display struct {
			Framebuffer string `hcl:"framebuffer"`
			Width       int    `hcl:"width"`
			Height      int    `hcl:"height"`
			FlushRows   int    `hcl:"flush_rows"`
		} `hcl:"display"`
		Touch struct {
			// evdev (default) or xpt2046
			Driver            string `hcl:"driver"`
			Device            string `hcl:"device"`
			SpiBus            string `hcl:"spi_bus"`
			SpiMode           int    `hcl:"spi_mode"`
			SpiSpeed          string `hcl:"spi_speed"`
			PollMs            int    `hcl:"poll_ms"`
			PressureMin       int    `hcl:"pressure_min"`
			RepeatCalibration bool   `hcl:"repeat_calibration"`
			CalibrationMargin int    `hcl:"calibration_margin"`
		} `hcl:"touch"`
		Modbus modbus.Config `hcl:"modbus"`
	} `hcl:"hardware"`

	UI struct {
		TickMs     int    `hcl:"tick_ms"`
		EntryText  string `hcl:"entry_text"`
		StatusText string `hcl:"status_text"`
	} `hcl:"ui"`

	Panel struct {
		TargetAddress int `hcl:"target_address"`
		// nil means default true, set by Global.Init
		SubmitOnCancel  *bool `hcl:"submit_on_cancel"`
		StatusRefresh   bool  `hcl:"status_refresh"`
		StatusRegister  int   `hcl:"status_register"`
		StatusRefreshMs int   `hcl:"status_refresh_ms"`
	} `hcl:"panel"`

	Persist struct {
		Root string `hcl:"root"`
	} `hcl:"persist"`

	Tele tele.Config `hcl:"tele"`

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			*errs = append(*errs, errors.NotFoundf("config required name=%s path=%s", source.Name, norm))
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	if err = hcl.Unmarshal(bs, c); err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config unmarshal source=%s", source.Name))
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		if _, ok := c.includeSeen[fs.Normalize(include.Name)]; ok {
			*errs = append(*errs, errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name))
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig merges names in order, later values override earlier.
// With OsFullReader, relative includes resolve against the first file directory.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		return nil, errors.Errorf("code error ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		if err := osfs.SetBase(dir); err != nil {
			return nil, err
		}
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}

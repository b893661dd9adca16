package touch

import (
	"io"
	"time"

	"github.com/juju/errors"
	"github.com/touchmodbus/panel/internal/types"
	"github.com/touchmodbus/panel/log2"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

// XPT2046 control bytes: start bit, channel, 12 bit differential mode, power down between conversions.
const (
	xptCmdX  byte = 0xd1
	xptCmdY  byte = 0x91
	xptCmdZ1 byte = 0xb1
	xptCmdZ2 byte = 0xc1
	xptMax        = 4095
)

const (
	DefaultXptSpeed    = 2 * physic.MegaHertz
	DefaultXptPoll     = 10 * time.Millisecond
	DefaultXptPressure = 400
)

type Xpt2046Config struct {
	SpiBus   string // empty selects first registered bus
	SpiMode  int
	SpiSpeed string // like "2MHz"
	PollMs   int
	// pressure below this reads as released
	PressureMin int
}

type SpiTxFunc func(send, recv []byte) error

// Xpt2046 samples resistive touch controller directly over SPI.
type Xpt2046 struct {
	snapshot
	log         *log2.Log
	tx          SpiTxFunc
	port        io.Closer
	period      time.Duration
	pressureMin int
	buf         [3]byte
	started     bool
	stopCh      chan struct{}
	done        chan struct{}
}

var _ Sensor = &Xpt2046{}
var _ RawPoller = &Xpt2046{}

func OpenXpt2046(c Xpt2046Config, log *log2.Log) (*Xpt2046, error) {
	speed := DefaultXptSpeed
	if c.SpiSpeed != "" {
		if err := speed.Set(c.SpiSpeed); err != nil {
			return nil, errors.Annotatef(err, "xpt2046 spi_speed=%s", c.SpiSpeed)
		}
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Annotate(err, "periph/init")
	}
	port, err := spireg.Open(c.SpiBus)
	if err != nil {
		return nil, errors.Annotatef(err, "xpt2046 SPI open bus=%s", c.SpiBus)
	}
	conn, err := port.Connect(speed, spi.Mode(c.SpiMode), 8)
	if err != nil {
		port.Close()
		return nil, errors.Annotatef(err, "xpt2046 SPI connect bus=%s speed=%s", c.SpiBus, speed)
	}
	d := NewXpt2046(conn.Tx, port, c, log)
	log.Debugf("xpt2046 bus=%s speed=%s period=%v", c.SpiBus, speed, d.period)
	return d, nil
}

// NewXpt2046 uses tx for transfers, port is closed by Close and may be nil.
func NewXpt2046(tx SpiTxFunc, port io.Closer, c Xpt2046Config, log *log2.Log) *Xpt2046 {
	d := &Xpt2046{
		log:         log,
		tx:          tx,
		port:        port,
		period:      DefaultXptPoll,
		pressureMin: c.PressureMin,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
	if c.PollMs > 0 {
		d.period = time.Duration(c.PollMs) * time.Millisecond
	}
	if d.pressureMin <= 0 {
		d.pressureMin = DefaultXptPressure
	}
	return d
}

// Start samples controller in background every period until transfer error or Close.
// Not safe to call concurrently with Close.
func (d *Xpt2046) Start() {
	d.started = true
	go d.run()
}

func (d *Xpt2046) run() {
	defer close(d.done)
	tmr := time.NewTicker(d.period)
	defer tmr.Stop()
	for {
		if err := d.sample(); err != nil {
			d.fail(err)
			d.log.Errorf("xpt2046 err=%v", err)
			return
		}
		select {
		case <-tmr.C:
		case <-d.stopCh:
			return
		}
	}
}

func (d *Xpt2046) Close() error {
	select {
	case <-d.stopCh:
		return nil
	default:
	}
	close(d.stopCh)
	if d.started {
		<-d.done
	}
	if d.port != nil {
		return d.port.Close()
	}
	return nil
}

// sample reads pressure, then position when pressed.
// Released touch keeps last position.
func (d *Xpt2046) sample() error {
	z1, err := d.read(xptCmdZ1)
	if err != nil {
		return err
	}
	z2, err := d.read(xptCmdZ2)
	if err != nil {
		return err
	}
	s := d.PollRaw()
	if z := z1 + xptMax - z2; z < d.pressureMin {
		s.Pressed = false
		d.commit(s)
		return nil
	}
	x, err := d.read(xptCmdX)
	if err != nil {
		return err
	}
	y, err := d.read(xptCmdY)
	if err != nil {
		return err
	}
	d.commit(types.TouchSample{Pressed: true, X: x, Y: y})
	return nil
}

// read sends command, 12 bit result is left aligned after busy bit in next two bytes.
func (d *Xpt2046) read(cmd byte) (int, error) {
	d.buf = [3]byte{cmd, 0, 0}
	if err := d.tx(d.buf[:], d.buf[:]); err != nil {
		return 0, errors.Annotatef(err, "xpt2046 cmd=%02x", cmd)
	}
	v := (uint16(d.buf[1])<<8 | uint16(d.buf[2])) >> 3
	return int(v & xptMax), nil
}

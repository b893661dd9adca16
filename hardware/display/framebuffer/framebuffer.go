// Package framebuffer writes RGB565 pixels to Linux /dev/fbN, one rectangle at a time.
package framebuffer

import (
	"encoding/binary"
	"image"
	"image/color"
	"os"
	"unsafe"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

type Framebuffer struct {
	dev   *os.File
	finfo fixedScreenInfo
	vinfo variableScreenInfo
	row   []byte // scratch, one screen row
}

func New(dev string) (*Framebuffer, error) {
	devFile, err := os.OpenFile(dev, os.O_RDWR, os.ModeDevice)
	if err != nil {
		return nil, errors.Annotate(err, "open")
	}
	fb := &Framebuffer{dev: devFile}
	fd := fb.dev.Fd()

	if err = ioctl(fd, getFixedScreenInfo, uintptr(unsafe.Pointer(&fb.finfo))); err != nil {
		fb.dev.Close()
		return nil, errors.Annotate(err, "getFixedScreenInfo")
	}
	if err = ioctl(fd, getVariableScreenInfo, uintptr(unsafe.Pointer(&fb.vinfo))); err != nil {
		fb.dev.Close()
		return nil, errors.Annotate(err, "getVariableScreenInfo")
	}
	if !fb.vinfo.is565() {
		fb.dev.Close()
		return nil, errors.NotSupportedf("color model bpp=%d", fb.vinfo.Bits_per_pixel)
	}
	fb.row = make([]byte, fb.vinfo.Xres*2)
	return fb, nil
}

func (fb *Framebuffer) Close() error {
	return fb.dev.Close()
}

func (fb *Framebuffer) Size() image.Point {
	return image.Point{X: int(fb.vinfo.Xres), Y: int(fb.vinfo.Yres)}
}

// WriteRect encodes r from src and writes it to device, row by row.
// r must be inside both src bounds and screen.
func (fb *Framebuffer) WriteRect(src *image.RGBA, r image.Rectangle) error {
	r = r.Intersect(image.Rectangle{Max: fb.Size()}).Intersect(src.Bounds())
	if r.Empty() {
		return nil
	}
	stride := int64(fb.finfo.Line_length)
	if stride == 0 {
		stride = int64(fb.vinfo.Xres) * 2
	}
	w := r.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		line := fb.row[:w*2]
		for i := 0; i < w; i++ {
			binary.LittleEndian.PutUint16(line[i*2:], Encode565(src.RGBAAt(r.Min.X+i, y)))
		}
		offset := int64(y)*stride + int64(r.Min.X)*2
		if _, err := fb.dev.WriteAt(line, offset); err != nil {
			return errors.Annotatef(err, "framebuffer write y=%d", y)
		}
	}
	return nil
}

func (v *variableScreenInfo) is565() bool {
	return v.Bits_per_pixel == 16 &&
		v.Red == rgb565.Red && v.Green == rgb565.Green && v.Blue == rgb565.Blue
}

var rgb565 = variableScreenInfo{
	Red:   bitField{Offset: 11, Length: 5, Right: 0},
	Green: bitField{Offset: 5, Length: 6, Right: 0},
	Blue:  bitField{Offset: 0, Length: 5, Right: 0},
}

func Encode565(c color.RGBA) uint16 {
	return (uint16(c.R) & 0xf8 << 8) | (uint16(c.G) & 0xfc << 3) | (uint16(c.B) & 0xf8 >> 3)
}

func ioctl(fd uintptr, cmd uintptr, data uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, data); errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}

// XXX_NewFile wraps regular file as RGB565 framebuffer of given size, for tests.
func XXX_NewFile(f *os.File, size image.Point) *Framebuffer {
	fb := &Framebuffer{dev: f, vinfo: rgb565}
	fb.vinfo.Bits_per_pixel = 16
	fb.vinfo.Xres, fb.vinfo.Yres = uint32(size.X), uint32(size.Y)
	fb.row = make([]byte, size.X*2)
	return fb
}

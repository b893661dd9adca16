// Package persist binds encoding.Binary{Marshaler,Unmarshaler} to crash-safe file storage.
package persist

import (
	"encoding"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/extremofile"
	"github.com/touchmodbus/panel/log2"
)

// ErrNoData means storage is readable and empty.
var ErrNoData = errors.New("persist no data")

type Stater interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type storage interface {
	Read() ([]byte, error)
	io.Writer
}

// Persist binds target Load/Store to storage under root/tag.
type Persist struct {
	sync.Mutex
	log     *log2.Log
	tag     string
	dir     string
	target  Stater
	storage storage
}

func (p *Persist) Init(tag string, target Stater, root string, log *log2.Log) error {
	if target == nil {
		panic("code error persist target nil")
	}
	p.tag = tag
	p.log = log
	p.target = target
	if root == "" {
		return errors.NotValidf("persist %s root=empty", p.tag)
	}
	p.dir = filepath.Join(root, tag)
	p.storage = extremofile.New(extremofile.Config{
		Dir:      p.dir,
		DirPerm:  0755,
		FilePerm: 0644,
	})
	return nil
}

func (p *Persist) Dir() string { return p.dir }

// Load returns ErrNoData if nothing was stored yet.
// Other errors mean storage or content is unusable, see Format.
func (p *Persist) Load() error {
	p.check()
	p.Lock()
	defer p.Unlock()
	tbegin := time.Now()
	b, err := p.storage.Read()
	p.log.Debugf("persist %s storage.read duration=%v", p.tag, time.Since(tbegin))
	if b == nil {
		if err == nil {
			return ErrNoData
		}
		return errors.Annotatef(err, "persist %s Load", p.tag)
	}
	if err != nil {
		p.log.Errorf("persist %s ignore non-critical storage err=%v", p.tag, err)
	}
	return errors.Annotatef(p.target.UnmarshalBinary(b), "persist %s Load", p.tag)
}

func (p *Persist) Store() error {
	p.check()
	p.Lock()
	defer p.Unlock()
	b, err := p.target.MarshalBinary()
	if err == nil {
		tbegin := time.Now()
		_, err = p.storage.Write(b)
		p.log.Debugf("persist %s storage.write duration=%v", p.tag, time.Since(tbegin))
	}
	return errors.Annotatef(err, "persist %s Store", p.tag)
}

// Format erases stored data. Next Load returns ErrNoData.
func (p *Persist) Format() error {
	p.check()
	p.Lock()
	defer p.Unlock()
	p.log.Infof("persist %s format dir=%s", p.tag, p.dir)
	return errors.Annotatef(os.RemoveAll(p.dir), "persist %s Format", p.tag)
}

func (p *Persist) check() {
	if p.storage == nil {
		panic("code error persist must call .Init() first")
	}
}

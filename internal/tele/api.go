// Package tele is a one-way diagnostic stream: register writes and errors
// are queued on disk and published to MQTT as protobuf messages.
package tele

import (
	"context"
	"sync"

	"github.com/touchmodbus/panel/hardware/modbus"
	"github.com/touchmodbus/panel/log2"
)

type Config struct {
	Enabled      bool   `hcl:"enable"`
	LogDebug     bool   `hcl:"log_debug"`
	MqttBroker   string `hcl:"mqtt_broker"`
	ClientID     string `hcl:"client_id"`
	TopicPrefix  string `hcl:"topic_prefix"`
	KeepaliveSec int    `hcl:"keepalive_sec"`
	TimeoutMs    int    `hcl:"timeout_ms"`
	RetryMs      int    `hcl:"retry_ms"`
	// default is set by state.Global.Init under persist.root
	PersistPath string `hcl:"persist_path"`
}

// Teler contract:
//   - Init fails only with invalid config, network issues are logged
//   - Submitted and Error block at most for queue disk write,
//     network may be slow or absent, messages are delivered in background
//   - delivery is at least once, undelivered messages survive restart
type Teler interface {
	Init(ctx context.Context, log *log2.Log, config Config) error
	Close()
	Submitted(req modbus.WriteRequest, status modbus.Status)
	Error(error)
}

// Stub records calls, used when tele is disabled and in tests.
type Stub struct {
	mu        sync.Mutex
	submitted []Submission
	errs      []error
}

type Submission struct {
	Request modbus.WriteRequest
	Status  modbus.Status
}

var _ Teler = &Stub{}

func NewStub() *Stub { return &Stub{} }

func (*Stub) Init(context.Context, *log2.Log, Config) error { return nil }

func (*Stub) Close() {}

func (s *Stub) Submitted(req modbus.WriteRequest, status modbus.Status) {
	s.mu.Lock()
	s.submitted = append(s.submitted, Submission{Request: req, Status: status})
	s.mu.Unlock()
}

func (s *Stub) Error(e error) {
	s.mu.Lock()
	s.errs = append(s.errs, e)
	s.mu.Unlock()
}

func (s *Stub) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.submitted...)
}

func (s *Stub) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

package tele

import (
	"context"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/temoto/spq"
	"github.com/touchmodbus/panel/hardware/modbus"
	"github.com/touchmodbus/panel/helpers"
	"github.com/touchmodbus/panel/log2"
)

const (
	DefaultRetry        = time.Second
	DefaultTimeout      = 5 * time.Second
	DefaultClientID     = "panel"
	topicSuffixSubmit   = "submit"
	topicSuffixError    = "error"
	topicSuffixConnect  = "c"
	logMsgDisabled      = "tele disabled"
	payloadConnected    = "1"
	payloadDisconnected = "0"
	retryMaxFactor      = 60
)

// Transporter delivers one message. Publish may block up to config timeout.
type Transporter interface {
	Init(ctx context.Context, log *log2.Log, config Config) error
	Publish(topic string, payload []byte) error
	Close()
}

type tele struct {
	config    Config
	log       *log2.Log
	transport Transporter
	q         *spq.Queue
	backoff   helpers.Backoff
	timeout   time.Duration
	stopCh    chan struct{}
	done      chan struct{}
}

func New() Teler { return &tele{} }

// NewWithTransporter is used by tests to replace MQTT.
func NewWithTransporter(trans Transporter) Teler { return &tele{transport: trans} }

func (self *tele) Init(ctx context.Context, log *log2.Log, config Config) error {
	self.config = config
	self.log = log
	if self.config.LogDebug {
		self.log.SetLevel(log2.LDebug)
	}
	if !self.config.Enabled {
		self.log.Infof(logMsgDisabled)
		return nil
	}
	if self.config.MqttBroker == "" {
		return errors.NotValidf("tele mqtt_broker=empty")
	}
	if self.config.PersistPath == "" {
		return errors.NotValidf("tele persist_path=empty")
	}
	if self.config.ClientID == "" {
		self.config.ClientID = DefaultClientID
	}
	if self.config.TopicPrefix == "" {
		self.config.TopicPrefix = self.config.ClientID
	}
	self.timeout = helpers.IntMillisecondDefault(self.config.TimeoutMs, DefaultTimeout)
	retry := helpers.IntMillisecondDefault(self.config.RetryMs, DefaultRetry)
	self.backoff = helpers.Backoff{Min: retry, Max: retry * retryMaxFactor, K: 2}

	if self.transport == nil { // production path
		self.transport = &transportMqtt{}
	}
	if err := self.transport.Init(ctx, self.log, self.config); err != nil {
		return errors.Annotate(err, "tele transport")
	}
	var err error
	if self.q, err = spq.Open(self.config.PersistPath); err != nil {
		self.transport.Close()
		return errors.Annotatef(err, "tele queue path=%s", self.config.PersistPath)
	}
	self.stopCh = make(chan struct{})
	self.done = make(chan struct{})
	go self.qworker()
	return nil
}

// Close stops delivery. Undelivered messages stay in queue until next Init.
func (self *tele) Close() {
	if self.q == nil {
		return
	}
	select {
	case <-self.stopCh:
		return
	default:
	}
	close(self.stopCh)
	if err := self.q.Close(); err != nil {
		self.log.Errorf("tele queue close err=%v", err)
	}
	select {
	case <-self.done:
	case <-time.After(self.timeout):
		self.log.Errorf("tele close timeout")
	}
	self.transport.Close()
}

func (self *tele) Submitted(req modbus.WriteRequest, status modbus.Status) {
	self.qpush(qSubmit, &SubmitReport{
		Id:       uuid.New().String(),
		Time:     time.Now().UnixNano(),
		Address:  req.Address,
		Register: uint32(modbus.Register(req.Address)),
		Value:    uint32(req.Value),
		Status:   uint32(status),
	})
}

func (self *tele) Error(e error) {
	if e == nil {
		return
	}
	self.log.Debugf("tele.Error: %s", errors.ErrorStack(e))
	self.qpush(qError, &ErrorReport{
		Id:      uuid.New().String(),
		Time:    time.Now().UnixNano(),
		Message: e.Error(),
	})
}

// qpush blocks at most for queue disk write.
func (self *tele) qpush(tag byte, pb proto.Message) {
	if self.q == nil {
		return
	}
	b, err := encodeItem(tag, pb)
	if err == nil {
		err = self.q.Push(b)
	}
	switch err {
	case nil:
	case spq.ErrClosed:
		self.log.Debugf("tele closed, message ignored %s", pb.String())
	default:
		// tele log has no error hook, see state.Global.Init
		self.log.Errorf("tele queue push err=%v", err)
	}
}

func (self *tele) topic(tag byte) string {
	suffix := topicSuffixError
	if tag == qSubmit {
		suffix = topicSuffixSubmit
	}
	return self.config.TopicPrefix + "/" + suffix
}

// qworker delivers queue head, failed publish is retried after backoff delay.
// Delivery is at least once.
func (self *tele) qworker() {
	defer close(self.done)
	for {
		box, err := self.q.Peek()
		switch err {
		case nil:
			err = self.qhandle(box)

		case spq.ErrClosed:
			select {
			case <-self.stopCh: // success path
			default:
				self.log.Errorf("CRITICAL tele queue closed unexpectedly")
			}
			return

		default:
			self.log.Errorf("CRITICAL tele queue err=%v", err)
		}

		if delay := self.backoff.DelayAfter(err == nil); delay != 0 {
			self.log.Debugf("tele retry delay=%v", delay)
			select {
			case <-time.After(delay):
			case <-self.stopCh:
				return
			}
		}
	}
}

func (self *tele) qhandle(box spq.Box) error {
	b := box.Bytes()
	tag, payload, err := decodeItem(b)
	if err != nil {
		self.log.Errorf("tele queue item=%x dropped err=%v", b, err)
		return self.q.Delete(box)
	}
	topic := self.topic(tag)
	if err = self.transport.Publish(topic, payload); err != nil {
		self.log.Debugf("tele publish topic=%s err=%v", topic, err)
		return err
	}
	self.log.Debugf("tele published topic=%s", topic)
	if err = self.q.Delete(box); err != nil {
		self.log.Errorf("tele queue delete err=%v", err)
	}
	return nil
}

package tele

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/touchmodbus/panel/helpers"
	"github.com/touchmodbus/panel/log2"
)

type transportMqtt struct {
	log     *log2.Log
	m       mqtt.Client
	mopt    *mqtt.ClientOptions
	timeout time.Duration

	topicConnect string
}

func (self *transportMqtt) Init(ctx context.Context, log *log2.Log, config Config) error {
	self.log = log
	mqtt.ERROR = log.Stdlib(log2.LError, "mqtt: ")
	mqtt.CRITICAL = log.Stdlib(log2.LError, "mqtt critical: ")
	mqtt.WARN = log.Stdlib(log2.LInfo, "mqtt warn: ")
	if config.LogDebug {
		mqtt.DEBUG = log.Stdlib(log2.LDebug, "mqtt debug: ")
	}

	self.timeout = helpers.IntMillisecondDefault(config.TimeoutMs, DefaultTimeout)
	self.topicConnect = config.TopicPrefix + "/" + topicSuffixConnect
	keepAlive := helpers.IntSecondDefault(config.KeepaliveSec, 60*time.Second)
	pingTimeout := helpers.IntSecondDefault(config.KeepaliveSec/2, 30*time.Second)
	self.mopt = mqtt.NewClientOptions().
		AddBroker(config.MqttBroker).
		SetClientID(config.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetKeepAlive(keepAlive).
		SetPingTimeout(pingTimeout).
		SetWriteTimeout(self.timeout).
		SetWill(self.topicConnect, payloadDisconnected, 1, true).
		SetOnConnectHandler(self.onConnectHandler).
		SetConnectionLostHandler(self.connectLostHandler)
	self.m = mqtt.NewClient(self.mopt)

	// application must start without network, connect result is only logged
	token := self.m.Connect()
	go func() {
		if token.Wait() && token.Error() != nil {
			self.log.Errorf("mqtt connect broker=%s err=%v", config.MqttBroker, token.Error())
		}
	}()
	return nil
}

func (self *transportMqtt) Publish(topic string, payload []byte) error {
	if !self.m.IsConnected() {
		return errors.Errorf("mqtt not connected")
	}
	token := self.m.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(self.timeout) {
		return errors.Timeoutf("mqtt publish topic=%s", topic)
	}
	return token.Error()
}

func (self *transportMqtt) Close() {
	if self.m.IsConnected() {
		self.m.Publish(self.topicConnect, 1, true, payloadDisconnected).WaitTimeout(self.timeout)
	}
	self.m.Disconnect(uint(self.timeout / time.Millisecond))
	self.log.Infof("mqtt disconnected")
}

func (self *transportMqtt) connectLostHandler(c mqtt.Client, err error) {
	self.log.Infof("mqtt connection lost err=%v", err)
}

func (self *transportMqtt) onConnectHandler(c mqtt.Client) {
	self.log.Infof("mqtt connect")
	c.Publish(self.topicConnect, 1, true, payloadConnected)
}

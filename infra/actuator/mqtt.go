package actuator

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/mixbot/core/logger"
)

// MQTTConfig defines the broker connection and the relay board addressing.
type MQTTConfig struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	TopicPrefix string      `json:"topic_prefix"`
	Channels    int         `json:"channels"`
	QoS         byte        `json:"qos"`
	LWTTopic    string      `json:"lwt_topic"`
	LWTPayload  string      `json:"lwt_payload"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

// pahoClient is the subset of paho.Client used by the driver.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTDriver switches relays of a networked board. Channel i maps to
// cmnd/<prefix>/POWER<i+1> with an ON or OFF payload.
type MQTTDriver struct {
	mu         sync.Mutex
	cli        pahoClient
	log        logger.Logger
	prefix     string
	channels   int
	qos        byte
	maxRetries int
	backoff    time.Duration
}

// NewMQTTDriver connects to the broker.
func NewMQTTDriver(cfg MQTTConfig, log logger.Logger) (*MQTTDriver, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt driver: broker is required")
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "mixbot"
	}
	if cfg.Channels <= 0 {
		cfg.Channels = DefaultChannels
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffMS <= 0 {
		cfg.BackoffMS = 100
	}
	if log == nil {
		log = logger.Nop{}
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected to %s", cfg.Broker) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) { log.Warnf("reconnecting to MQTT broker") }

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTDriver{
		cli:        c,
		log:        log,
		prefix:     cfg.TopicPrefix,
		channels:   cfg.Channels,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}, nil
}

// NewClientOptions builds mqtt client options from MQTTConfig. An empty
// client id gets a random suffix so that two machines never collide.
func NewClientOptions(cfg MQTTConfig) (*paho.ClientOptions, error) {
	id := cfg.ClientID
	if id == "" {
		id = "mixbot-" + uuid.NewString()
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(id)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.QoS, true)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c MQTTConfig) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Topic returns the command topic of channel.
func (d *MQTTDriver) Topic(channel int) string {
	return fmt.Sprintf("cmnd/%s/POWER%d", d.prefix, channel+1)
}

func (d *MQTTDriver) SetChannelActive(channel int, active bool) error {
	if channel < 0 || channel >= d.channels {
		return fmt.Errorf("mqtt driver: channel %d out of range", channel)
	}
	payload := "OFF"
	if active {
		payload = "ON"
	}
	topic := d.Topic(channel)
	d.mu.Lock()
	defer d.mu.Unlock()
	var publishErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		token := d.cli.Publish(topic, d.qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			d.log.Debugf("sent %s to %s", payload, topic)
			return nil
		}
		d.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(d.backoff * time.Duration(1<<attempt))
	}
	return fmt.Errorf("mqtt driver: %s %s: %w", topic, payload, publishErr)
}

func (d *MQTTDriver) Channels() int { return d.channels }

// Close switches every relay off and disconnects.
func (d *MQTTDriver) Close() error {
	var errs []error
	for ch := 0; ch < d.channels; ch++ {
		if err := d.SetChannelActive(ch, false); err != nil {
			errs = append(errs, err)
		}
	}
	if d.cli.IsConnected() {
		d.cli.Disconnect(250)
	}
	return errors.Join(errs...)
}

package actuator

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	qos     byte
	payload string
}

// mockClient implements pahoClient for tests
type mockClient struct {
	mu          sync.Mutex
	opts        *paho.ClientOptions
	published   []published
	publishErrs []error
	connected   bool
}

func (m *mockClient) IsConnected() bool { return m.connected }
func (m *mockClient) Connect() paho.Token {
	m.connected = true
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(nil)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) { m.connected = false }
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{topic, qos, fmt.Sprint(payload)})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

func withMockClient(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func TestMQTTDriverTopics(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	d, err := NewMQTTDriver(MQTTConfig{Broker: "tcp://localhost:1883", TopicPrefix: "bar", QoS: 1}, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultChannels, d.Channels())

	require.NoError(t, d.SetChannelActive(0, true))
	require.NoError(t, d.SetChannelActive(18, false))
	require.Error(t, d.SetChannelActive(19, true))
	require.Equal(t, []published{
		{"cmnd/bar/POWER1", 1, "ON"},
		{"cmnd/bar/POWER19", 1, "OFF"},
	}, mc.published)
	require.Contains(t, mc.opts.ClientID, "mixbot-")
}

func TestMQTTDriverRetry(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMockClient(t, mc)
	d, err := NewMQTTDriver(MQTTConfig{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, d.SetChannelActive(2, true))
	require.Len(t, mc.published, 2)
}

func TestMQTTDriverGivesUp(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("a"), fmt.Errorf("b")}}
	withMockClient(t, mc)
	d, err := NewMQTTDriver(MQTTConfig{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, nil)
	require.NoError(t, err)
	require.Error(t, d.SetChannelActive(2, true))
}

func TestMQTTDriverCloseSwitchesOff(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	d, err := NewMQTTDriver(MQTTConfig{Broker: "tcp://localhost:1883", Channels: 3, LWTTopic: "tele/mixbot/LWT", LWTPayload: "Offline"}, nil)
	require.NoError(t, err)
	require.True(t, mc.opts.WillEnabled)
	require.NoError(t, d.Close())
	require.Len(t, mc.published, 3)
	for _, p := range mc.published {
		require.Equal(t, "OFF", p.payload)
	}
	require.False(t, mc.connected)
}

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	tlsCfg, err := MQTTConfig{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}.LoadTLSConfig()
	require.NoError(t, err)
	require.NotEmpty(t, tlsCfg.Certificates)
	require.NotNil(t, tlsCfg.RootCAs)

	_, err = NewClientOptions(MQTTConfig{Broker: "tcp://x:1883", UseTLS: true})
	require.Error(t, err)
}

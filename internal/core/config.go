package core

import (
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the top-level forwarder configuration, loaded from a YAML file
// named on the command line (spec §6: configuration is applied via the
// control channel at runtime, but listeners/ports/tables are bootstrapped
// from this file).
type Config struct {
	Core    CoreConfig    `yaml:"core"`
	Faces   FacesConfig   `yaml:"faces"`
	Tables  TablesConfig  `yaml:"tables"`
	Control ControlConfig `yaml:"control"`
}

type CoreConfig struct {
	BaseDir      string `yaml:"-"`
	LogLevel     string `yaml:"log_level"`
	CpuProfile   string `yaml:"-"`
	MemProfile   string `yaml:"-"`
	BlockProfile string `yaml:"-"`

	// IngressQueueCapacity bounds the dispatcher's cross-thread ingress
	// ring (internal/core.Ring); once full, new frames are dropped and
	// counted rather than queued without limit (spec §5).
	IngressQueueCapacity int `yaml:"ingress_queue_capacity"`
}

type FacesConfig struct {
	Udp struct {
		Port          int `yaml:"port"`
		DefaultMtu    int `yaml:"default_mtu"`
		LifetimeSecs  int `yaml:"lifetime_secs"`
	} `yaml:"udp"`
	Tcp struct {
		Port int `yaml:"port"`
	} `yaml:"tcp"`
	Unix struct {
		Path string `yaml:"path"`
	} `yaml:"unix"`
	Ether struct {
		Ifname    string `yaml:"ifname"`
		Ethertype int    `yaml:"ethertype"`
	} `yaml:"ether"`
	Multicast struct {
		Group string `yaml:"group"`
		Port  int    `yaml:"port"`
	} `yaml:"multicast"`
	WebSocket struct {
		Port int `yaml:"port"`
	} `yaml:"websocket"`
	Quic struct {
		Port    int    `yaml:"port"`
		TLSCert string `yaml:"tls_cert"`
		TLSKey  string `yaml:"tls_key"`
	} `yaml:"quic"`
}

type TablesConfig struct {
	ContentStoreCapacity int  `yaml:"cs_capacity"`
	CacheServe           bool `yaml:"cache_serve"`
	CacheStore           bool `yaml:"cache_store"`
	PitDefaultLifetime   time.Duration `yaml:"pit_default_lifetime"`
	PitMaxLifetime       time.Duration `yaml:"pit_max_lifetime"`
}

type ControlConfig struct {
	Port    int    `yaml:"port"`
	WebPort int    `yaml:"web_port"`
}

// DefaultPort is the well-known TCP/UDP port for control and data (spec §6).
const DefaultPort = 9695

// DefaultConfig returns a Config populated with the spec's defaults.
func DefaultConfig() *Config {
	c := &Config{}
	c.Core.LogLevel = "INFO"
	c.Core.IngressQueueCapacity = 4096
	c.Faces.Udp.Port = DefaultPort
	c.Faces.Udp.DefaultMtu = 1500
	c.Faces.Udp.LifetimeSecs = 600
	c.Faces.Tcp.Port = DefaultPort
	c.Faces.Unix.Path = "/run/metisd.sock"
	c.Faces.Ether.Ethertype = 0x0801
	c.Faces.Multicast.Port = DefaultPort
	c.Faces.WebSocket.Port = 9696
	// Quic is off by default: it requires an operator-supplied TLS
	// certificate (tls_cert/tls_key), unlike every other face kind.
	c.Faces.Quic.Port = 0
	c.Tables.ContentStoreCapacity = 50000
	c.Tables.CacheServe = true
	c.Tables.CacheStore = true
	c.Tables.PitDefaultLifetime = 4 * time.Second
	c.Tables.PitMaxLifetime = 60 * time.Second
	c.Control.Port = DefaultPort
	c.Control.WebPort = 9698
	return c
}

// ReadYaml loads YAML configuration from path into cfg in place.
func ReadYaml(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

// UdpLifetime returns the configured on-demand UDP face expiration window.
func (c *Config) UdpLifetime() time.Duration {
	return time.Duration(c.Faces.Udp.LifetimeSecs) * time.Second
}

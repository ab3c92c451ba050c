package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/mogaika/vif1emu/ps2/gif"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vif1emu.yaml")
	if err := ioutil.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Error(err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
ring_capacity: 64
direct_path: 3
stall_backoff_min: 50us
stall_backoff_max: 10ms
tag_transfer: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RingCapacity != 64 || cfg.DirectPath != gif.PATH3 || cfg.TagTransfer {
		t.Errorf("loaded %+v", cfg)
	}
	if cfg.StallBackoffMin != 50*time.Microsecond || cfg.StallBackoffMax != 10*time.Millisecond {
		t.Errorf("backoff %v..%v", cfg.StallBackoffMin, cfg.StallBackoffMax)
	}
	if cfg.RAMSize != Default().RAMSize || cfg.StallLogEvery != Default().StallLogEvery {
		t.Errorf("missing keys lost defaults: %+v", cfg)
	}

	opts := cfg.Vif1Options()
	if opts.RingCapacity != 64 || opts.DirectPath != gif.PATH3 || opts.StallBackoffMin != 50*time.Microsecond {
		t.Errorf("unit options %+v", opts)
	}
}

func TestValidate(t *testing.T) {
	var tests = []struct {
		name   string
		modify func(c *Config)
	}{
		{"capacity", func(c *Config) { c.RingCapacity = 0 }},
		{"ram", func(c *Config) { c.RAMSize = 0x3000 }},
		{"spr", func(c *Config) { c.SPRSize = 0 }},
		{"path", func(c *Config) { c.DirectPath = 4 }},
		{"backoff", func(c *Config) { c.StallBackoffMax = c.StallBackoffMin / 2 }},
	}
	for _, test := range tests {
		c := Default()
		test.modify(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: invalid config accepted", test.name)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("missing file loaded")
	}
	if _, err := Load(writeConfig(t, "ring_capacity: [1, 2]\n")); err == nil {
		t.Errorf("malformed file loaded")
	}
	if _, err := Load(writeConfig(t, "ram_size: 12345\n")); err == nil {
		t.Errorf("invalid file loaded")
	}
}

package config

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/vif1emu/ps2/ee"
	"github.com/mogaika/vif1emu/ps2/gif"
	"github.com/mogaika/vif1emu/ps2/vif1"
)

type Config struct {
	RingCapacity int    `yaml:"ring_capacity"`
	RAMSize      uint32 `yaml:"ram_size"`
	SPRSize      uint32 `yaml:"spr_size"`
	DirectPath   int    `yaml:"direct_path"`

	StallBackoffMin time.Duration `yaml:"stall_backoff_min"`
	StallBackoffMax time.Duration `yaml:"stall_backoff_max"`
	StallLogEvery   uint64        `yaml:"stall_log_every"`

	// DMA chain walker
	TagTransfer bool `yaml:"tag_transfer"`
	MaxTags     int  `yaml:"max_tags"`
}

func Default() Config {
	opts := vif1.DefaultOptions()
	return Config{
		RingCapacity:    opts.RingCapacity,
		RAMSize:         ee.EE_RAM_SIZE,
		SPRSize:         ee.EE_SPR_SIZE,
		DirectPath:      opts.DirectPath,
		StallBackoffMin: opts.StallBackoffMin,
		StallBackoffMax: opts.StallBackoffMax,
		StallLogEvery:   opts.StallLogEvery,
		TagTransfer:     true,
		MaxTags:         0x100000,
	}
}

// Load reads yaml file on top of defaults, missing keys keep default values
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "Cannot read config %q", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "Unmarshaling error in %q", path)
	}
	return cfg, cfg.Validate()
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

func (c Config) Validate() error {
	if c.RingCapacity <= 0 {
		return errors.Errorf("ring_capacity must be positive, got %d", c.RingCapacity)
	}
	if !isPowerOfTwo(c.RAMSize) {
		return errors.Errorf("ram_size 0x%x is not power of two", c.RAMSize)
	}
	if !isPowerOfTwo(c.SPRSize) {
		return errors.Errorf("spr_size 0x%x is not power of two", c.SPRSize)
	}
	if c.DirectPath < gif.PATH1 || c.DirectPath > gif.PATH3 {
		return errors.Errorf("direct_path %d is not gif path", c.DirectPath)
	}
	if c.StallBackoffMin <= 0 || c.StallBackoffMax < c.StallBackoffMin {
		return errors.Errorf("stall backoff range [%v:%v] is invalid", c.StallBackoffMin, c.StallBackoffMax)
	}
	return nil
}

func (c Config) Vif1Options() vif1.Options {
	return vif1.Options{
		RingCapacity:    c.RingCapacity,
		DirectPath:      c.DirectPath,
		StallBackoffMin: c.StallBackoffMin,
		StallBackoffMax: c.StallBackoffMax,
		StallLogEvery:   c.StallLogEvery,
	}
}

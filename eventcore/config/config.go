// Package config loads BusConfig the way the teacher framework loads its
// module configs: a plain struct tagged for multiple formats, fed by small
// Feeder implementations rather than one monolithic parser.
package config

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// BusConfig configures the ambient behavior around an eventcore.Bus: it
// never reaches into C1–C5 directly, so it can be loaded and validated
// independently of any particular Bus instance.
type BusConfig struct {
	// DefaultOrder names a PostOrder in the string form eventcore.ParseOrder
	// accepts. Stored as a string here so it round-trips through
	// YAML/TOML/env without importing eventcore (keeping this package
	// dependency-free of the core). This package only loads it: eventcore.Bus
	// does not read BusConfig, and reflective subscriptions without a
	// SubscriberOptions entry get Normal regardless of this value.
	DefaultOrder string `yaml:"defaultOrder" toml:"default_order" env:"DEFAULT_ORDER"`

	// BakeInterval is a period for a full dispatcher rebuild as a
	// consistency sweep (see eventcore/baker.go). NewBaker does not read
	// this field; it takes a cron spec string.
	BakeInterval time.Duration `yaml:"bakeInterval" toml:"bake_interval" env:"BAKE_INTERVAL"`

	// LogLevel is a hint for the chosen Logger implementation; eventcore
	// itself doesn't interpret it.
	LogLevel string `yaml:"logLevel" toml:"log_level" env:"LOG_LEVEL"`
}

// DefaultBusConfig returns the configuration new buses should use absent
// any feeder overriding it.
func DefaultBusConfig() *BusConfig {
	return &BusConfig{
		DefaultOrder: "NORMAL",
		BakeInterval: 0,
		LogLevel:     "info",
	}
}

// Feeder populates a *BusConfig from one configuration source. Multiple
// feeders can be applied in sequence, each overriding fields the previous
// one set, mirroring the teacher's layered feeder pipeline.
type Feeder interface {
	Feed(cfg *BusConfig) error
}

// YAMLFeeder loads BusConfig fields from a YAML file.
type YAMLFeeder struct{ Path string }

// Feed implements Feeder.
func (f YAMLFeeder) Feed(cfg *BusConfig) error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// TOMLFeeder loads BusConfig fields from a TOML file.
type TOMLFeeder struct{ Path string }

// Feed implements Feeder.
func (f TOMLFeeder) Feed(cfg *BusConfig) error {
	_, err := toml.DecodeFile(f.Path, cfg)
	return err
}

// EnvFeeder overrides BusConfig fields from environment variables named by
// each field's env struct tag, prefixed by Prefix. Type coercion goes
// through github.com/golobby/cast's FromType, the same conversion call the
// teacher's own AffixedEnvFeeder uses, rather than hand-rolled strconv calls
// for every field kind.
type EnvFeeder struct{ Prefix string }

// Feed implements Feeder.
func (f EnvFeeder) Feed(cfg *BusConfig) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("env")
		if tag == "" {
			continue
		}
		raw, ok := os.LookupEnv(f.Prefix + tag)
		if !ok {
			continue
		}
		if err := setField(v.Field(i), raw); err != nil {
			return err
		}
	}
	return nil
}

// durationType special-cases time.Duration: cast.FromType converts to the
// field's declared kind (int64), which would set nanoseconds literally
// rather than parsing "30s"-style duration strings.
var durationType = reflect.TypeOf(time.Duration(0))

func setField(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	converted, err := cast.FromType(raw, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}
	field.Set(reflect.ValueOf(converted))
	return nil
}

// Load applies every feeder in order over DefaultBusConfig.
func Load(feeders ...Feeder) (*BusConfig, error) {
	cfg := DefaultBusConfig()
	for _, f := range feeders {
		if err := f.Feed(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

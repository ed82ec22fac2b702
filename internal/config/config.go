/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kentakayama/bootsign/internal/algo"
	"github.com/kentakayama/bootsign/internal/bootstatus"
	"github.com/kentakayama/bootsign/resources"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to upper-cased flag names when reading overrides
// from the environment, e.g. --header-size -> BOOTSIGN_HEADER_SIZE.
const EnvPrefix = "BOOTSIGN_"

var ErrInvalidProfile = errors.New("invalid build profile")

// Hex is an unsigned integer that may be written as 0x… in YAML.
type Hex uint64

func (h *Hex) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected a number", ErrInvalidProfile, n.Line)
	}
	v, err := strconv.ParseUint(strings.ReplaceAll(n.Value, "_", ""), 0, 64)
	if err != nil {
		return fmt.Errorf("%w: line %d: %q: %v", ErrInvalidProfile, n.Line, n.Value, err)
	}
	*h = Hex(v)
	return nil
}

func (h Hex) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("%#x", uint64(h)), nil
}

// Profile holds the build options that influence image layout and the
// location of the partitions inside a flash dump.
type Profile struct {
	HeaderSize             Hex    `yaml:"header_size"`
	Algorithm              string `yaml:"algorithm"`
	Hash                   string `yaml:"hash"`
	PartitionSize          Hex    `yaml:"partition_size"`
	BootPartitionAddress   Hex    `yaml:"boot_partition_address"`
	UpdatePartitionAddress Hex    `yaml:"update_partition_address"`
	// Ledger is the SQLite file recording signed images. Empty disables it.
	Ledger string `yaml:"ledger,omitempty"`
}

// Default returns the embedded profile.
func Default() Profile {
	p, err := Parse(resources.DefaultProfile, Profile{})
	if err != nil {
		panic(fmt.Sprintf("embedded profile: %v", err))
	}
	return p
}

// Parse decodes data on top of base. Unknown keys are rejected.
func Parse(data []byte, base Profile) (Profile, error) {
	p := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		if errors.Is(err, ErrInvalidProfile) {
			return Profile{}, err
		}
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Load reads path over the defaults. An empty path yields Default().
func Load(path string) (Profile, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	p, err := Parse(data, Default())
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("loaded build profile %s", path)
	return p, nil
}

func (p Profile) Validate() error {
	if _, err := algo.Parse(p.Algorithm); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if _, err := algo.ParseHash(p.Hash); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if p.HeaderSize > 0xFFFF {
		return fmt.Errorf("%w: header_size %#x", ErrInvalidProfile, uint64(p.HeaderSize))
	}
	if p.PartitionSize != 0 && p.PartitionSize < bootstatus.StatusOffset {
		return fmt.Errorf("%w: partition_size %#x", ErrInvalidProfile, uint64(p.PartitionSize))
	}
	return nil
}

// Algorithms returns the parsed signing and hash algorithms.
func (p Profile) Algorithms() (algo.Algorithm, algo.HashAlgorithm, error) {
	a, err := algo.Parse(p.Algorithm)
	if err != nil {
		return 0, 0, err
	}
	h, err := algo.ParseHash(p.Hash)
	if err != nil {
		return 0, 0, err
	}
	return a, h, nil
}

// Partition resolves BOOT or UPDATE to its location.
func (p Profile) Partition(name string) (bootstatus.Partition, error) {
	part := bootstatus.Partition{Name: strings.ToUpper(name), Size: int64(p.PartitionSize)}
	switch part.Name {
	case "BOOT":
		part.Base = int64(p.BootPartitionAddress)
	case "UPDATE":
		part.Base = int64(p.UpdatePartitionAddress)
	default:
		return bootstatus.Partition{}, fmt.Errorf("%w: %q", bootstatus.ErrInvalidPartition, name)
	}
	if p.PartitionSize == 0 {
		return bootstatus.Partition{}, fmt.Errorf("%w: partition_size not set", ErrInvalidProfile)
	}
	return part, nil
}

// SetFlagsFromEnv fills every flag not given on the command line from
// EnvPrefix + NAME.
func SetFlagsFromEnv(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		name := EnvVarName(f.Name)
		if value, ok := os.LookupEnv(name); ok {
			if err := flags.Set(f.Name, value); err != nil {
				log.Infof("unable to configure flag %s using variable %s, err: %v", f.Name, name, err)
			}
		}
	})
}

// EnvVarName maps a flag name to its environment variable.
func EnvVarName(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

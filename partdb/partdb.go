// go-avrisp
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-avrisp.
//
// go-avrisp is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-avrisp is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-avrisp; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package partdb loads AVR part descriptions: the serial programming
// instruction templates and timing the programmer needs for each device.
package partdb

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	avrisp "github.com/ZaparooProject/go-avrisp"
	"github.com/ZaparooProject/go-avrisp/isp"
	"gopkg.in/yaml.v3"
)

// ErrUnknownPart is returned by Lookup when no part matches
var ErrUnknownPart = errors.New("unknown part")

//go:embed parts.yaml
var defaultCatalog []byte

// Entry is one part as written in a catalog file
type Entry struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	ProgramEnable    string `yaml:"program_enable"`
	ChipErase        string `yaml:"chip_erase"`
	ChipEraseDelayUS int    `yaml:"chip_erase_delay_us"`
	TPI              bool   `yaml:"tpi"`
}

type catalog struct {
	Parts []Entry `yaml:"parts"`
}

// Database is a set of parts keyed by lower-case id and name
type Database struct {
	parts map[string]*avrisp.Part
	ids   []string
}

// Default returns the built-in catalog
func Default() (*Database, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML file
func Load(path string) (*Database, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user supplied catalog
	if err != nil {
		return nil, fmt.Errorf("read part catalog: %w", err)
	}
	db, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// Parse decodes a YAML catalog
func Parse(data []byte) (*Database, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse part catalog: %w", err)
	}

	db := &Database{parts: make(map[string]*avrisp.Part)}
	for i := range c.Parts {
		if err := db.add(&c.Parts[i]); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func (db *Database) add(e *Entry) error {
	if e.ID == "" {
		return fmt.Errorf("part %q: missing id", e.Name)
	}
	part, err := e.Part()
	if err != nil {
		return fmt.Errorf("part %s: %w", e.ID, err)
	}

	keys := []string{strings.ToLower(e.ID)}
	if e.Name != "" && !strings.EqualFold(e.Name, e.ID) {
		keys = append(keys, strings.ToLower(e.Name))
	}
	for _, key := range keys {
		if _, dup := db.parts[key]; dup {
			return fmt.Errorf("part %s: duplicate key %q", e.ID, key)
		}
	}
	for _, key := range keys {
		db.parts[key] = part
	}
	db.ids = append(db.ids, e.ID)
	return nil
}

// Part converts a catalog entry into the programmer's part description
func (e *Entry) Part() (*avrisp.Part, error) {
	name := e.Name
	if name == "" {
		name = e.ID
	}
	part := &avrisp.Part{
		Name:           name,
		TPIOnly:        e.TPI,
		ChipEraseDelay: time.Duration(e.ChipEraseDelayUS) * time.Microsecond,
	}
	if e.ChipEraseDelayUS < 0 {
		return nil, fmt.Errorf("negative chip erase delay %d", e.ChipEraseDelayUS)
	}

	if e.ProgramEnable != "" {
		op, err := isp.ParseOperation(e.ProgramEnable)
		if err != nil {
			return nil, fmt.Errorf("program_enable: %w", err)
		}
		part.ProgramEnable = op
	} else if !e.TPI {
		return nil, errors.New("program_enable is required for SPI parts")
	}

	if e.ChipErase != "" {
		op, err := isp.ParseOperation(e.ChipErase)
		if err != nil {
			return nil, fmt.Errorf("chip_erase: %w", err)
		}
		part.ChipErase = op
	}
	return part, nil
}

// Lookup finds a part by id or name, ignoring case
func (db *Database) Lookup(key string) (*avrisp.Part, error) {
	part, ok := db.parts[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPart, key)
	}
	return part, nil
}

// IDs returns the part ids in sorted order
func (db *Database) IDs() []string {
	ids := append([]string(nil), db.ids...)
	sort.Strings(ids)
	return ids
}

/*
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package configparser

import (
	"errors"
	"strconv"
	"strings"
)

// Settings holds the simulator-wide options a config file can set, in the
// same register-callback style the original used for device options
// (RegisterOption/RegisterSwitch/RegisterModel called from init()).
type Settings struct {
	MemSize      uint32 // physical memory size, in bytes
	ResetVector  uint32 // pcc.address on reset
	TraceVersion int    // negotiated retirement-trace version, 1 or 2
	StrictTrace  bool   // reject non-zero upper half of a 16-bit insn word
	ExtV         bool   // vector extension enabled
	ExtF         bool   // single-precision float extension enabled
	ExtC         bool   // compressed-instruction extension enabled
}

var current = Settings{
	MemSize:      64 * 1024,
	ResetVector:  0x8000_0000,
	TraceVersion: 1,
}

// Current returns the settings accumulated from the most recent
// LoadConfigFile call (or the defaults, if none has run yet).
func Current() Settings {
	return current
}

func init() {
	RegisterOption("mem", setMemSize)
	RegisterOption("pc", setResetVector)
	RegisterOption("tracev", setTraceVersion)
	RegisterSwitch("strict", setStrictTrace)
	RegisterModel("ext", TypeOptions, setExtensions)
}

// parseSize accepts a plain decimal byte count or a decimal value suffixed
// with K or M (1024 or 1024*1024 multiplier).
func parseSize(value string) (uint32, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	mult := uint64(1)
	switch {
	case strings.HasSuffix(value, "K"):
		mult = 1024
		value = strings.TrimSuffix(value, "K")
	case strings.HasSuffix(value, "M"):
		mult = 1024 * 1024
		value = strings.TrimSuffix(value, "M")
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, errors.New("invalid size: " + value)
	}
	return uint32(n * mult), nil
}

func setMemSize(_ uint16, value string, _ []Option) error {
	size, err := parseSize(value)
	if err != nil {
		return err
	}
	current.MemSize = size
	return nil
}

func setResetVector(_ uint16, value string, _ []Option) error {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(value), "0X"), 16, 32)
	if err != nil {
		return errors.New("invalid reset vector: " + value)
	}
	current.ResetVector = uint32(v)
	return nil
}

func setTraceVersion(_ uint16, value string, _ []Option) error {
	v, err := strconv.ParseUint(value, 10, 8)
	if err != nil || (v != 1 && v != 2) {
		return errors.New("trace version must be 1 or 2")
	}
	current.TraceVersion = int(v)
	return nil
}

func setStrictTrace(_ uint16, _ string, _ []Option) error {
	current.StrictTrace = true
	return nil
}

// setExtensions handles a line like "ext v f c": value carries the first
// extension name (consumed by parseFirst ahead of the options list) and
// options carries the rest, each a bare name with no value.
func setExtensions(_ uint16, value string, options []Option) error {
	names := make([]string, 0, len(options)+1)
	names = append(names, value)
	for _, opt := range options {
		names = append(names, opt.Name)
	}
	for _, name := range names {
		switch strings.ToUpper(name) {
		case "V":
			current.ExtV = true
		case "F":
			current.ExtF = true
		case "C":
			current.ExtC = true
		default:
			return errors.New("unknown extension: " + name)
		}
	}
	return nil
}

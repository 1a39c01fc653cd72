// Package emmc reads and interprets the extended CSD register set of an
// eMMC device via the mmc-utils tool.
package emmc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const mmcTimeout = 20 * time.Second

// Value is one parsed register line.
type Value struct {
	Key    string // descriptive name from the tool output
	Hex    string // raw hex text when present
	Int    int64
	HasInt bool
	Str    string // free-form value (cache size line)
}

// ExtCSD holds the parsed register map plus the raw tool output for the
// lines that need ad hoc inspection.
type ExtCSD struct {
	Raw       string
	Registers map[string]Value

	// CardTypes lists the interface mode lines following CARD_TYPE.
	CardTypes []string
}

// BaseDevice strips a trailing partition suffix, mapping /dev/mmcblk0p2 to
// /dev/mmcblk0. extcsd reads address the whole device.
func BaseDevice(path string) string {
	re := regexp.MustCompile(`p\d+$`)
	if strings.Contains(path, "mmcblk") && re.MatchString(path) {
		return re.ReplaceAllString(path, "")
	}
	return path
}

// Read runs `mmc extcsd read` against the device and parses the output.
func Read(ctx context.Context, device string) (*ExtCSD, error) {
	base := BaseDevice(device)
	if base != device {
		logrus.Warnf("%s looks like a partition, using %s", device, base)
	}
	if _, err := os.Stat(base); err != nil {
		return nil, fmt.Errorf("emmc: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, mmcTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "mmc", "extcsd", "read", base).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("emmc: mmc extcsd read %s: %w: %s", base, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("emmc: mmc extcsd read %s: %w", base, err)
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil, fmt.Errorf("emmc: mmc extcsd read %s produced no output", base)
	}
	return Parse(string(out)), nil
}

var (
	// Key [REGISTER: 0xNN]
	bracketHexRe = regexp.MustCompile(`^\s*(.*?)\s*\[(\S+):\s*(0x[0-9a-fA-F]+)\s*\]`)
	// Key [REGISTER]: 0xNN
	plainHexRe = regexp.MustCompile(`^\s*(.*?)\s+\[(\S+)\]:\s*(0x[0-9a-fA-F]+)\s*$`)
	// Key [REGISTER]: 123
	plainDecRe = regexp.MustCompile(`^\s*(.*?)\s+\[(\S+)\]:\s*(\d+)\s*$`)
	// Cache Size [CACHE_SIZE] is 65536 KiB
	cacheRe = regexp.MustCompile(`^\s*(Cache Size)\s+\[(CACHE_SIZE)\]\s+is\s+(\d+)\s*(KiB|MiB|GiB)?`)
)

// Parse interprets the text form printed by mmc-utils. Unknown lines are
// skipped; the first match for a register wins.
func Parse(output string) *ExtCSD {
	e := &ExtCSD{
		Raw:       output,
		Registers: map[string]Value{},
	}

	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if m := cacheRe.FindStringSubmatch(line); m != nil {
			n, err := strconv.ParseInt(m[3], 10, 64)
			v := Value{Key: m[1], Str: strings.TrimSpace(m[3] + " " + m[4])}
			if err == nil {
				v.Int, v.HasInt = n, true
			}
			e.set(m[2], v)
			continue
		}
		if m := bracketHexRe.FindStringSubmatch(line); m != nil {
			e.set(m[2], hexValue(m[1], m[3]))
			if m[2] == "CARD_TYPE" {
				e.CardTypes = indentedBlock(lines[i+1:])
			}
			continue
		}
		if m := plainHexRe.FindStringSubmatch(line); m != nil {
			e.set(m[2], hexValue(m[1], m[3]))
			continue
		}
		if m := plainDecRe.FindStringSubmatch(line); m != nil {
			n, err := strconv.ParseInt(m[3], 10, 64)
			v := Value{Key: m[1], Str: m[3]}
			if err == nil {
				v.Int, v.HasInt = n, true
			}
			e.set(m[2], v)
		}
	}
	return e
}

func (e *ExtCSD) set(register string, v Value) {
	if _, ok := e.Registers[register]; !ok {
		e.Registers[register] = v
	}
}

func hexValue(key, hex string) Value {
	v := Value{Key: strings.TrimSpace(key), Hex: hex}
	if n, err := strconv.ParseInt(strings.TrimPrefix(hex, "0x"), 16, 64); err == nil {
		v.Int, v.HasInt = n, true
	}
	return v
}

func indentedBlock(lines []string) []string {
	var block []string
	for _, line := range lines {
		if line == "" || !strings.HasPrefix(line, " ") {
			break
		}
		block = append(block, strings.TrimSpace(line))
	}
	return block
}

// Int returns the numeric value of a register.
func (e *ExtCSD) Int(register string) (int64, bool) {
	v, ok := e.Registers[register]
	if !ok || !v.HasInt {
		return 0, false
	}
	return v.Int, true
}

// Key returns the descriptive name the tool printed for a register.
func (e *ExtCSD) Key(register, fallback string) string {
	if v, ok := e.Registers[register]; ok && v.Key != "" {
		return v.Key
	}
	return fallback
}

var revRe = regexp.MustCompile(`Extended CSD rev (\d\.\d) \(MMC (.*?)\)`)

// Spec extracts the extended CSD revision and the MMC standard version.
func (e *ExtCSD) Spec() (csdRev, mmcSpec string) {
	m := revRe.FindStringSubmatch(e.Raw)
	if m == nil {
		return "Unknown", "Unknown"
	}
	return m[1], m[2]
}

// Package sysmon collects the host figures shown on the monitoring screen:
// load average, memory usage, uptime, CPU temperature and network identity.
package sysmon

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultThermalZone = "/sys/class/thermal/thermal_zone0/temp"

type Stats struct {
	Hostname   string
	IP         string
	Load1      float64
	MemUsedMB  int64
	MemTotalMB int64
	Uptime     time.Duration
	CPUTempC   float64
}

// Collect gathers a best-effort snapshot. Fields whose source cannot be read
// keep their zero value.
func Collect() Stats {
	var s Stats
	s.Hostname, _ = os.Hostname()
	s.IP = localIP()
	if raw, err := os.ReadFile("/proc/loadavg"); err == nil {
		s.Load1, _ = parseLoadAvg(string(raw))
	}
	if raw, err := os.ReadFile("/proc/meminfo"); err == nil {
		if total, avail, err := parseMemInfo(string(raw)); err == nil {
			s.MemTotalMB = total / 1024
			s.MemUsedMB = (total - avail) / 1024
		}
	}
	if raw, err := os.ReadFile("/proc/uptime"); err == nil {
		s.Uptime, _ = parseUptime(string(raw))
	}
	s.CPUTempC, _ = ReadTemp(defaultThermalZone)
	return s
}

// ReadTemp reads a thermal zone sysfs node holding millidegrees Celsius and
// returns degrees.
func ReadTemp(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("sysmon: %w", err)
	}
	return parseMilliDeg(string(raw))
}

func parseLoadAvg(s string) (float64, error) {
	fields := strings.Fields(s)
	if len(fields) < 1 {
		return 0, fmt.Errorf("sysmon: malformed loadavg %q", s)
	}
	return strconv.ParseFloat(fields[0], 64)
}

func parseMemInfo(s string) (totalKB, availKB int64, err error) {
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalKB, err = strconv.ParseInt(fields[1], 10, 64)
		case "MemAvailable:":
			availKB, err = strconv.ParseInt(fields[1], 10, 64)
		}
		if err != nil {
			return 0, 0, fmt.Errorf("sysmon: malformed meminfo line %q", line)
		}
	}
	if totalKB == 0 {
		return 0, 0, fmt.Errorf("sysmon: MemTotal not found")
	}
	return totalKB, availKB, nil
}

func parseUptime(s string) (time.Duration, error) {
	fields := strings.Fields(s)
	if len(fields) < 1 {
		return 0, fmt.Errorf("sysmon: malformed uptime %q", s)
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func parseMilliDeg(s string) (float64, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("sysmon: malformed temperature %q", s)
	}
	return float64(n) / 1000, nil
}

// localIP returns the primary interface address by asking the kernel which
// source address an outbound packet would use. No traffic is sent.
func localIP() string {
	conn, err := net.Dial("udp", "10.255.255.255:1")
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}

// FormatUptime renders a duration as "3d 4h 12m" style text for the panel.
func FormatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

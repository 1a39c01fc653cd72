package emmc

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// JEDEC device life time estimate buckets (registers 268/269).
var lifeTimeMap = map[int64]string{
	0x00: "0% used (or not defined)",
	0x01: "0% - 10% used",
	0x02: "10% - 20% used",
	0x03: "20% - 30% used",
	0x04: "30% - 40% used",
	0x05: "40% - 50% used",
	0x06: "50% - 60% used",
	0x07: "60% - 70% used",
	0x08: "70% - 80% used",
	0x09: "80% - 90% used",
	0x0A: "90% - 100% used",
	0x0B: "Exceeded estimated life",
}

// JEDEC pre EOL info (register 267).
var preEOLMap = map[int64]string{
	0x00: "Not defined",
	0x01: "Normal",
	0x02: "Warning (80% consumption)",
	0x03: "Urgent (90% consumption)",
}

var bkopsStatusMap = map[int64]string{
	0x00: "No operation",
	0x01: "Performing background operation",
	0x02: "Vendor specific status 2 (potentially busy)",
	0x03: "Vendor specific status 3 (potentially busy)",
}

var cardTypeMap = []struct {
	bit  int64
	desc string
}{
	{1 << 0, "HS eMMC @26MHz"},
	{1 << 1, "HS eMMC @52MHz"},
	{1 << 2, "HS DDR eMMC @52MHz 1.8V or 3V I/O"},
	{1 << 3, "HS DDR eMMC @52MHz 1.2V I/O"},
	{1 << 4, "HS200 SDR eMMC @200MHz 1.8V I/O"},
	{1 << 5, "HS200 SDR eMMC @200MHz 1.2V I/O"},
	{1 << 6, "HS400 DDR eMMC @200MHz 1.8V I/O"},
	{1 << 7, "HS400 DDR eMMC @200MHz 1.2V I/O"},
}

type Health int

const (
	HealthUnknown Health = iota
	HealthExcellent
	HealthModerateWear
	HealthHighWear
	HealthWarning
	HealthCritical
	HealthUrgent
)

func (h Health) String() string {
	switch h {
	case HealthExcellent:
		return "Excellent"
	case HealthModerateWear:
		return "Moderate wear (50%+ used)"
	case HealthHighWear:
		return "High wear (80%+ used)"
	case HealthWarning:
		return "Warning (approaching EOL)"
	case HealthCritical:
		return "Critical (exceeded lifetime)"
	case HealthUrgent:
		return "Urgent (near/at EOL)"
	default:
		return "Unknown (health info not available)"
	}
}

// AssessHealth ranks the device from the life time estimates and the pre
// EOL register.
func (e *ExtCSD) AssessHealth() Health {
	lifeA, okA := e.Int("EXT_CSD_DEVICE_LIFE_TIME_EST_TYP_A")
	lifeB, okB := e.Int("EXT_CSD_DEVICE_LIFE_TIME_EST_TYP_B")
	preEOL, okEOL := e.Int("EXT_CSD_PRE_EOL_INFO")

	worstLife := int64(0)
	if okA && lifeA > worstLife {
		worstLife = lifeA
	}
	if okB && lifeB > worstLife {
		worstLife = lifeB
	}

	switch {
	case okEOL && preEOL == 0x03:
		return HealthUrgent
	case okEOL && preEOL == 0x02:
		return HealthWarning
	case worstLife >= 0x0B:
		return HealthCritical
	case worstLife >= 0x09:
		return HealthHighWear
	case worstLife >= 0x06:
		return HealthModerateWear
	case !okA && !okB && !okEOL:
		return HealthUnknown
	default:
		return HealthExcellent
	}
}

// Capacity derives the user area size from SEC_COUNT, assuming 512-byte
// sectors.
func (e *ExtCSD) Capacity() (gb, gib float64, ok bool) {
	secCount, ok := e.Int("SEC_COUNT")
	if !ok || secCount == 0 {
		return 0, 0, false
	}
	totalBytes := float64(secCount) * 512
	return totalBytes / 1e9, totalBytes / (1 << 30), true
}

// palette wraps report fragments in ANSI codes, or leaves them alone when
// color is off.
type palette struct{ enabled bool }

func (p palette) wrap(code, s string) string {
	if !p.enabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func (p palette) green(s string) string  { return p.wrap("92", s) }
func (p palette) yellow(s string) string { return p.wrap("93", s) }
func (p palette) red(s string) string    { return p.wrap("91", s) }
func (p palette) bold(s string) string   { return p.wrap("1", s) }

func (p palette) health(h Health) string {
	switch h {
	case HealthExcellent:
		return p.green(h.String())
	case HealthModerateWear, HealthWarning:
		return p.yellow(h.String())
	case HealthHighWear, HealthCritical, HealthUrgent:
		return p.red(h.String())
	default:
		return h.String()
	}
}

func (p palette) lifeTime(v int64, ok bool) string {
	if !ok {
		return "N/A"
	}
	desc, known := lifeTimeMap[v]
	if !known {
		return fmt.Sprintf("Unknown [0x%02X]", v)
	}
	text := fmt.Sprintf("%s [0x%02X]", desc, v)
	switch {
	case v >= 0x09:
		return p.red(text)
	case v >= 0x05:
		return p.yellow(text)
	default:
		return p.green(text)
	}
}

// WriteReport renders the health report for a parsed register set.
func WriteReport(w io.Writer, device string, e *ExtCSD, color bool) {
	p := palette{enabled: color}

	fmt.Fprintf(w, "--- eMMC health report: %s ---\n", device)

	csdRev, mmcSpec := e.Spec()
	health := e.AssessHealth()
	lifeA, okA := e.Int("EXT_CSD_DEVICE_LIFE_TIME_EST_TYP_A")
	lifeB, okB := e.Int("EXT_CSD_DEVICE_LIFE_TIME_EST_TYP_B")
	preEOL, okEOL := e.Int("EXT_CSD_PRE_EOL_INFO")

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "\nHealth assessment\n")
	fmt.Fprintf(tw, "  Life time est. A (SLC)\t%s\n", p.lifeTime(lifeA, okA))
	fmt.Fprintf(tw, "  Life time est. B (MLC)\t%s\n", p.lifeTime(lifeB, okB))
	fmt.Fprintf(tw, "  Pre EOL info\t%s\n", formatPreEOL(p, preEOL, okEOL))
	fmt.Fprintf(tw, "  %s\t%s\n", p.bold("Overall"), p.health(health))

	fmt.Fprintf(tw, "\nDevice information\n")
	fmt.Fprintf(tw, "  eMMC standard\tMMC %s (CSD rev %s)\n", mmcSpec, csdRev)
	if gb, gib, ok := e.Capacity(); ok {
		secCount, _ := e.Int("SEC_COUNT")
		fmt.Fprintf(tw, "  Capacity\t%.2f GB / %.2f GiB (%d sectors)\n", gb, gib, secCount)
	} else {
		fmt.Fprintf(tw, "  Capacity\tUnknown\n")
	}
	if v, ok := e.Registers["CACHE_SIZE"]; ok {
		fmt.Fprintf(tw, "  Cache size\t%s\n", v.Str)
	}

	trimMult, okTrim := e.Int("TRIM_MULT")
	fmt.Fprintf(tw, "  TRIM support\t%s\n", yesNo(p, okTrim && trimMult > 0))

	bkopsSupport, _ := e.Int("BKOPS_SUPPORT")
	fmt.Fprintf(tw, "  Background ops (BKOPS)\t%s\n", supported(p, bkopsSupport == 1))
	if bkopsSupport == 1 {
		if status, ok := e.Int("BKOPS_STATUS"); ok {
			desc, known := bkopsStatusMap[status]
			if !known {
				desc = fmt.Sprintf("Vendor specific status %d", status)
			}
			fmt.Fprintf(tw, "    BKOPS status\t%s\n", desc)
		}
	}

	cmdqSupport, _ := e.Int("CMDQ_SUPPORT")
	fmt.Fprintf(tw, "  Command queuing (CMDQ)\t%s\n", supported(p, cmdqSupport == 1))
	if cmdqSupport == 1 {
		if depth, ok := e.Int("CMDQ_DEPTH"); ok {
			fmt.Fprintf(tw, "    CMDQ depth\t%d\n", depth)
		}
	}

	if wrRel, ok := e.Int("WR_REL_PARAM"); ok {
		mode := "Basic"
		if wrRel&0x01 != 0 {
			mode = "Enhanced"
		}
		fmt.Fprintf(tw, "  Reliable write\t%s\n", mode)
	}
	if bootMult, ok := e.Int("BOOT_SIZE_MULTI"); ok {
		fmt.Fprintf(tw, "  Boot partition size\t%d KiB (x2)\n", bootMult*128)
	}
	if rpmbMult, ok := e.Int("RPMB_SIZE_MULT"); ok {
		fmt.Fprintf(tw, "  RPMB size\t%d KiB\n", rpmbMult*128)
	}

	if ct := e.Registers["CARD_TYPE"].Hex; ct != "" {
		fmt.Fprintf(tw, "  Interface modes\t%s\n", ct)
	}
	tw.Flush()

	if len(e.CardTypes) > 0 {
		for _, t := range e.CardTypes {
			fmt.Fprintf(w, "    - %s\n", t)
		}
	} else if cardType, ok := e.Int("CARD_TYPE"); ok {
		for _, ct := range cardTypeMap {
			if cardType&ct.bit != 0 {
				fmt.Fprintf(w, "    - %s\n", ct.desc)
			}
		}
	}

	writeRecommendations(w, p, e, health)
}

func formatPreEOL(p palette, v int64, ok bool) string {
	if !ok {
		return "N/A"
	}
	desc, known := preEOLMap[v]
	if !known {
		return fmt.Sprintf("Unknown [0x%02X]", v)
	}
	text := fmt.Sprintf("%s [0x%02X]", desc, v)
	switch v {
	case 0x01:
		return p.green(text)
	case 0x02:
		return p.yellow(text)
	case 0x03:
		return p.red(text)
	default:
		return text
	}
}

func yesNo(p palette, b bool) string {
	if b {
		return p.green("Yes")
	}
	return p.yellow("No / Unknown")
}

func supported(p palette, b bool) string {
	if b {
		return p.green("Supported")
	}
	return p.yellow("Not supported / Unknown")
}

func writeRecommendations(w io.Writer, p palette, e *ExtCSD, health Health) {
	fmt.Fprintf(w, "\nRecommendations\n")
	fmt.Fprintf(w, "  1. Monitor health: re-run this report periodically.\n")
	if health >= HealthModerateWear {
		fmt.Fprintf(w, "     %s\n", p.yellow("-> Status is non-optimal; monitor more frequently."))
	}
	fmt.Fprintf(w, "  2. Maintain free space: keep 15-20%%+ free for wear leveling.\n")

	if trimMult, ok := e.Int("TRIM_MULT"); ok && trimMult > 0 {
		fmt.Fprintf(w, "  3. Ensure TRIM is active: verify the OS issues discards (fstrim -v /).\n")
	} else {
		fmt.Fprintf(w, "  3. %s\n", p.yellow("TRIM not supported: longevity may degrade without it."))
	}

	fmt.Fprintf(w, "  4. Minimize unnecessary writes: review logging, consider tmpfs for /tmp.\n")
	fmt.Fprintf(w, "  5. Stable power: use a quality PSU and clean shutdowns.\n")

	if cardType, ok := e.Int("CARD_TYPE"); ok {
		switch {
		case cardType&(3<<6) != 0:
			fmt.Fprintf(w, "  6. Interface speed: device supports HS400, verify the host uses it.\n")
		case cardType&(3<<4) != 0:
			fmt.Fprintf(w, "  6. Interface speed: device supports HS200, verify the host uses it.\n")
		}
	}
}

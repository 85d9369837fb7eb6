// Package analyzer implements the static analyzer (spec component C2):
// a pure, deterministic scan of sketch source text that produces
// advisory messages plus an analog-pin enumeration. It is best-effort
// and must never block compilation (spec §9 Design Notes).
package analyzer

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	orderedmap "github.com/arduino/go-properties-orderedmap"
)

// Kind classifies an advisory message.
type Kind string

// Advisory kinds.
const (
	KindParser  Kind = "parser"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

// Category groups advisories by the subsystem they concern.
type Category string

// Advisory categories.
const (
	CategorySerial      Category = "serial"
	CategoryHardware    Category = "hardware"
	CategoryPins        Category = "pins"
	CategoryPerformance Category = "performance"
)

// Advisory is one diagnostic-but-not-fatal message surfaced alongside a
// compile, per spec §3.
type Advisory struct {
	ID         string   `json:"id"`
	Kind       Kind     `json:"kind"`
	Category   Category `json:"category"`
	Severity   int      `json:"severity"`
	Line       *int     `json:"line,omitempty"`
	Column     *int     `json:"column,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// pwmPins are the UNO's PWM-capable digital pins.
var pwmPins = map[string]bool{"3": true, "5": true, "6": true, "9": true, "10": true, "11": true}

var (
	serialBeginRE  = regexp.MustCompile(`\bSerial\.begin\s*\(\s*(\d+)\s*\)`)
	serialPrintRE  = regexp.MustCompile(`\bSerial\.print(ln)?\s*\(`)
	// Both regexes keep a literal "A" prefix inside the same capture
	// group as the digits so submatchPin's result matches analogReadRE's
	// pin labels exactly (e.g. "A0", not "0") — mismatched normalization
	// here previously made the pinMode/analogRead conflict check miss
	// every analog pin referenced by its A-prefixed name.
	analogWriteRE  = regexp.MustCompile(`\banalogWrite\s*\(\s*(?:(A\d+|\d+)|([A-Za-z_]\w*))\s*,`)
	pinModeRE      = regexp.MustCompile(`\bpinMode\s*\(\s*(?:(A\d+|\d+)|([A-Za-z_]\w*))\s*,\s*(INPUT_PULLUP|OUTPUT|INPUT)\s*\)`)
	analogReadRE   = regexp.MustCompile(`\banalogRead\s*\(\s*(?:(A\d+)|(\d+)|([A-Za-z_]\w*))\s*\)`)
	defineRE       = regexp.MustCompile(`(?m)^\s*#define\s+([A-Za-z_]\w*)\s+(A\d+|\d+)\s*$`)
	simpleAssignRE = regexp.MustCompile(`(?m)\b(?:const\s+)?int\s+([A-Za-z_]\w*)\s*=\s*(A\d+|\d+)\s*;`)
	standardBauds  = map[string]bool{"300": true, "1200": true, "2400": true, "4800": true, "9600": true,
		"14400": true, "19200": true, "28800": true, "38400": true, "57600": true, "115200": true}
)

// Analyze scans raw sketch source text and returns ordered advisories
// plus the set of pin labels it found referenced as analog pins
// (directly, via #define, or via a simple int binding).
func Analyze(source string) ([]Advisory, map[string]bool) {
	clean := stripComments(source)
	advisories := orderedmap.NewMap()

	add := func(a Advisory) {
		if advisories.ContainsKey(a.ID) {
			return
		}
		advisories.Set(a.ID, encode(a))
	}

	hasSerialBegin := false
	for _, m := range serialBeginRE.FindAllStringSubmatchIndex(clean, -1) {
		hasSerialBegin = true
		baud := clean[m[2]:m[3]]
		if !standardBauds[baud] {
			line := lineOf(clean, m[0])
			add(Advisory{
				ID:       adviseID(CategorySerial, "nonstandard-baud", baud),
				Kind:     KindWarning,
				Category: CategorySerial,
				Severity: 2,
				Line:     &line,
				Message:  fmt.Sprintf("Serial.begin(%s) uses a non-standard baud rate", baud),
			})
		}
	}

	if serialPrintRE.MatchString(clean) && !hasSerialBegin {
		loc := serialPrintRE.FindStringIndex(clean)
		line := lineOf(clean, loc[0])
		add(Advisory{
			ID:       adviseID(CategorySerial, "print-without-begin", ""),
			Kind:     KindWarning,
			Category: CategorySerial,
			Severity: 2,
			Line:     &line,
			Message:  "Serial.print is used without an active Serial.begin",
		})
	}

	for _, m := range analogWriteRE.FindAllStringSubmatchIndex(clean, -1) {
		pin := submatchPin(clean, m)
		if pin == "" || pwmPins[pin] {
			continue
		}
		line := lineOf(clean, m[0])
		add(Advisory{
			ID:       adviseID(CategoryHardware, "analog-write-non-pwm", pin),
			Kind:     KindWarning,
			Category: CategoryHardware,
			Severity: 3,
			Line:     &line,
			Message:  fmt.Sprintf("analogWrite used on pin %s, which is not a PWM-capable pin", pin),
		})
	}

	pinModeDigital := map[string]bool{}
	for _, m := range pinModeRE.FindAllStringSubmatchIndex(clean, -1) {
		pin := submatchPin(clean, m)
		if pin != "" {
			pinModeDigital[pin] = true
		}
	}
	for _, m := range analogReadRE.FindAllStringSubmatchIndex(clean, -1) {
		pin := analogReadPin(clean, m)
		if pin == "" {
			continue
		}
		if pinModeDigital[pin] {
			line := lineOf(clean, m[0])
			add(Advisory{
				ID:       adviseID(CategoryPins, "pinmode-and-analogread", pin),
				Kind:     KindWarning,
				Category: CategoryPins,
				Severity: 2,
				Line:     &line,
				Message:  fmt.Sprintf("pin %s is configured with pinMode and also read with analogRead", pin),
			})
		}
	}

	keys := advisories.Keys()
	result := make([]Advisory, 0, len(keys))
	for _, id := range keys {
		result = append(result, decode(advisories.Get(id)))
	}

	return result, enumerateAnalogPins(clean)
}

func encode(a Advisory) string {
	// Encoded as a delimited scalar so it fits go-properties-orderedmap's
	// string-valued map; advisories are decoded back on output.
	line := ""
	if a.Line != nil {
		line = strconv.Itoa(*a.Line)
	}
	return strings.Join([]string{a.ID, string(a.Kind), string(a.Category), strconv.Itoa(a.Severity), line, a.Message}, "\x1f")
}

func decode(raw string) Advisory {
	parts := strings.SplitN(raw, "\x1f", 6)
	a := Advisory{ID: parts[0], Kind: Kind(parts[1]), Category: Category(parts[2])}
	a.Severity, _ = strconv.Atoi(parts[3])
	if parts[4] != "" {
		if n, err := strconv.Atoi(parts[4]); err == nil {
			a.Line = &n
		}
	}
	a.Message = parts[5]
	return a
}

func adviseID(cat Category, kind, disambiguator string) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s:%s:%s", cat, kind, disambiguator)
	return hex.EncodeToString(h.Sum(nil))[:12]
}

func lineOf(text string, byteOffset int) int {
	return 1 + strings.Count(text[:byteOffset], "\n")
}

func submatchPin(text string, m []int) string {
	if m[2] >= 0 {
		return text[m[2]:m[3]]
	}
	return ""
}

func analogReadPin(text string, m []int) string {
	for _, pair := range [][2]int{{m[2], m[3]}, {m[4], m[5]}} {
		if pair[0] >= 0 {
			return text[pair[0]:pair[1]]
		}
	}
	return ""
}

// enumerateAnalogPins is advisory-only (spec §4.2): it finds analog pins
// referenced directly, through #define, or through a short int binding.
func enumerateAnalogPins(clean string) map[string]bool {
	pins := map[string]bool{}
	for _, m := range analogReadRE.FindAllStringSubmatchIndex(clean, -1) {
		if pin := analogReadPin(clean, m); pin != "" {
			pins[normalizeAnalog(pin)] = true
		}
	}
	// A bare number in a #define or int binding is not known to be an
	// analog pin, so only A-prefixed values are taken from those.
	for _, m := range defineRE.FindAllStringSubmatch(clean, -1) {
		if strings.HasPrefix(m[2], "A") {
			pins[m[2]] = true
		}
	}
	for _, m := range simpleAssignRE.FindAllStringSubmatch(clean, -1) {
		if strings.HasPrefix(m[2], "A") {
			pins[m[2]] = true
		}
	}
	for label := range pins {
		if !strings.HasPrefix(label, "A") {
			delete(pins, label)
		}
	}
	return pins
}

func normalizeAnalog(v string) string {
	if strings.HasPrefix(v, "A") {
		return v
	}
	return "A" + v
}

// stripComments removes // and /* */ comments (but not ones inside
// string/char literals) so commented-out code never satisfies a check.
func stripComments(src string) string {
	var out strings.Builder
	out.Grow(len(src))
	inLineComment := false
	inBlockComment := false
	inString := false
	inChar := false
	runes := []rune(src)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}
		switch {
		case inLineComment:
			if c == '\n' {
				inLineComment = false
				out.WriteRune(c)
			}
		case inBlockComment:
			if c == '*' && next == '/' {
				inBlockComment = false
				i++
			} else if c == '\n' {
				// Preserve line breaks inside block comments so byte
				// offsets after the comment still map to the right
				// source line (lineOf counts newlines in this text).
				out.WriteRune(c)
			}
		case inString:
			out.WriteRune(c)
			if c == '\\' {
				i++
				if i < len(runes) {
					out.WriteRune(runes[i])
				}
			} else if c == '"' {
				inString = false
			}
		case inChar:
			out.WriteRune(c)
			if c == '\\' {
				i++
				if i < len(runes) {
					out.WriteRune(runes[i])
				}
			} else if c == '\'' {
				inChar = false
			}
		case c == '/' && next == '/':
			inLineComment = true
			i++
		case c == '/' && next == '*':
			inBlockComment = true
			i++
		case c == '"':
			inString = true
			out.WriteRune(c)
		case c == '\'':
			inChar = true
			out.WriteRune(c)
		default:
			out.WriteRune(c)
		}
	}
	return out.String()
}

package driver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/draco-mount/alpaca-mount/internal/mounterr"
)

// The SkyWatcher protocol (spec §6.2) is colon-prefixed ASCII, carriage-return
// terminated, with hex-encoded payloads: requests look like ":<cmd><axis><hex...>\r"
// and responses begin '=' (success, optional hex payload) or '!' (error).

type swAxisCode byte

const (
	swAxis1 swAxisCode = '1'
	swAxis2 swAxisCode = '2'
)

// buildCommand renders a SkyWatcher request frame for the given command letter,
// axis code and hex payload (payload may be empty).
func buildCommand(cmdLetter byte, axis swAxisCode, payload string) string {
	var b strings.Builder
	b.WriteByte(':')
	b.WriteByte(cmdLetter)
	b.WriteByte(byte(axis))
	b.WriteString(payload)
	b.WriteByte('\r')
	return b.String()
}

// parseResponse strips frame delimiters and reports whether the device
// answered success ('=') or error ('!').
func parseResponse(raw string) (payload string, ok bool, err error) {
	raw = strings.TrimRight(raw, "\r\n")
	if raw == "" {
		return "", false, mounterr.Driver(mounterr.CodeInvalidData, "skywatcher: empty response")
	}
	switch raw[0] {
	case '=':
		return raw[1:], true, nil
	case '!':
		return raw[1:], false, mounterr.Driver(mounterr.CodeNoResponseAxis1, "skywatcher: device reported error %q", raw[1:])
	default:
		return "", false, mounterr.Driver(mounterr.CodeInvalidData, "skywatcher: malformed response %q", raw)
	}
}

// hexToInt24 decodes a SkyWatcher little-endian-nibble-swapped 24-bit hex
// count (the protocol sends bytes in a 2-1-0 byte order with each byte itself
// in normal hex) into an int64 step count.
func hexToInt24(hex string) (int64, error) {
	if len(hex) < 6 {
		return 0, mounterr.Driver(mounterr.CodeInvalidData, "skywatcher: short hex count %q", hex)
	}
	// Reorder byte-pairs: "aabbcc" on the wire means value byte order cc bb aa.
	reordered := hex[4:6] + hex[2:4] + hex[0:2]
	v, err := strconv.ParseInt(reordered, 16, 64)
	if err != nil {
		return 0, mounterr.Driver(mounterr.CodeInvalidData, "skywatcher: bad hex count %q: %v", hex, err)
	}
	return v, nil
}

// int24ToHex is the inverse of hexToInt24, encoding a step count (0..0xFFFFFF,
// or a signed rate encoded by the caller) into the wire's byte-swapped form.
func int24ToHex(v int64) string {
	u := uint32(v) & 0xFFFFFF
	b0 := u & 0xFF
	b1 := (u >> 8) & 0xFF
	b2 := (u >> 16) & 0xFF
	return fmt.Sprintf("%02X%02X%02X", b0, b1, b2)
}

func axisCodeFor(axisIdx int) swAxisCode {
	if axisIdx == 0 {
		return swAxis1
	}
	return swAxis2
}

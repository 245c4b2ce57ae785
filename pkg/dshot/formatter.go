// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dshot

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame with its bits grouped as value|telemetry|crc
func FormatFrame(f Frame) string {
	bits := fmt.Sprintf("%016b", uint16(f))
	status := "ok"
	if !f.Valid() {
		status = "BAD CRC"
	}
	return fmt.Sprintf("frame=0x%04X value=%d bits=%s|%s|%s crc=0x%X (%s)",
		uint16(f), f.Value(), bits[:11], bits[11:12], bits[12:], f.Checksum(), status)
}

// FormatRaw explains every decode step of a raw 21-bit response word
func FormatRaw(raw uint32, poles int) string {
	if raw == NoResponse {
		return "raw=NO_RESPONSE\n"
	}

	gcr := raw ^ (raw >> 1)
	result := fmt.Sprintf("raw=0x%06X (%021b)\n", raw, raw&ones(ResponseLength))
	result += fmt.Sprintf("  gcr=0x%05X groups=", gcr&ones(GCRGroups*GCRGroupBits))

	groups := make([]string, 0, GCRGroups)
	for g := GCRGroups - 1; g >= 0; g-- {
		code := uint8(gcr >> (g * GCRGroupBits) & 0x1F)
		if nibble, ok := DecodeGCRSymbol(code); ok {
			groups = append(groups, fmt.Sprintf("%05b->%X", code, nibble))
		} else {
			groups = append(groups, fmt.Sprintf("%05b->?", code))
		}
	}
	result += strings.Join(groups, " ") + "\n"

	t, err := DecodeTelemetry(raw)
	if err != nil {
		result += fmt.Sprintf("  error: %v\n", err)
		return result
	}
	result += fmt.Sprintf("  value=0x%04X exponent=%d mantissa=%d period=%dus\n",
		t.Value, t.Exponent(), t.Mantissa(), t.PeriodMicros())
	result += fmt.Sprintf("  erpm=%d rpm=%d (%d poles)\n", t.ERPM(), t.RPM(poles), poles)
	return result
}

// FormatResponse formats one motor's decode outcome on a single line
func FormatResponse(r Response) string {
	if r.Err != nil {
		return fmt.Sprintf("motor %d: %-40v rpm=%6d err=%5.1f", r.Motor, r.Err, r.State.RPM, r.State.Error)
	}
	return fmt.Sprintf("motor %d: period=%5dus %-27s rpm=%6d err=%5.1f",
		r.Motor, r.Telemetry.PeriodMicros(), fmt.Sprintf("0x%04X", r.Telemetry.Value), r.State.RPM, r.State.Error)
}

// FormatWaveform draws the line level of one pin as the waveform would play
// it, one character per fraction of a bit slot.
func FormatWaveform(w *Waveform, pin uint8) string {
	p := w.Policy()
	n := p.Sections()
	words := w.Words()
	set, reset := SetMask(pin), ResetMask(pin)

	var sb strings.Builder
	high := true
	for slot := 0; slot < len(words)/n; slot++ {
		if slot > 0 {
			sb.WriteByte('|')
		}
		for s := 0; s < n; s++ {
			word := words[slot*n+s]
			if word&reset != 0 {
				high = false
			}
			if word&set != 0 {
				high = true
			}

			end := p.FrameLength
			if s+1 < n {
				end = p.Offsets[s+1]
			}
			width := ((end-p.Offsets[s])*8 + p.FrameLength/2) / p.FrameLength
			if width < 1 {
				width = 1
			}
			c := "_"
			if high {
				c = "‾"
			}
			sb.WriteString(strings.Repeat(c, width))
		}
	}
	return sb.String()
}

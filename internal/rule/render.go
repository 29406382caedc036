// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rule

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"
)

// String renders the rule back in the configuration grammar. Zero
// addresses render as 0.0.0.0 / :: and zero ports are omitted, so parsing
// the rendered text yields an identical rule. The quick flag has no form in
// the grammar and is not rendered, so quick rules read back as non-quick.
func (r Rule) String() string {
	if r.kind == KindDefault {
		return r.action.String() + " all"
	}

	var sb strings.Builder
	sb.WriteString(Action(r.raw.Action).String())

	if p := Proto(r.raw.Proto); p != ProtoAny {
		sb.WriteString(" proto ")
		sb.WriteString(p.String())
	}

	sb.WriteString(" from ")
	sb.WriteString(r.srcAddr())
	if port := portValue(r.raw.Sport); port != 0 {
		fmt.Fprintf(&sb, " port %d", port)
	}

	sb.WriteString(" to ")
	sb.WriteString(r.dstAddr())
	if port := portValue(r.raw.Dport); port != 0 {
		fmt.Fprintf(&sb, " port %d", port)
	}

	return sb.String()
}

func (r Rule) srcAddr() string {
	if r.kind == KindIPv6 {
		return netip.AddrFrom16(r.raw.Saddr6).String()
	}
	return addr4String(r.raw.Saddr4)
}

func (r Rule) dstAddr() string {
	if r.kind == KindIPv6 {
		return netip.AddrFrom16(r.raw.Daddr6).String()
	}
	return addr4String(r.raw.Daddr4)
}

// addr4String undoes the container encoding of addr4.
func addr4String(v uint32) string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b).String()
}

// portValue undoes the container encoding of port16.
func portValue(p uint16) uint16 {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], p)
	return binary.BigEndian.Uint16(b[:])
}

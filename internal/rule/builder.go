// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rule

import (
	"encoding/binary"
	"net/netip"
	"strings"

	"grimm.is/pfrs/internal/errors"
)

// parts is the staging record a Builder accumulates before Build.
type parts struct {
	action Action
	ipv6   bool
	quick  bool
	proto  Proto
	saddr  netip.AddrPort
	daddr  netip.AddrPort
	hasSrc bool
	hasDst bool
}

// Builder assembles a Rule step by step. Operations chain; once any step
// fails, the remaining steps are no-ops and Build returns the first error.
type Builder struct {
	parts parts
	err   error
}

// NewBuilder creates a Builder with the default staging state: pass, not
// quick, any protocol, IPv4 family.
func NewBuilder() *Builder {
	return &Builder{parts: parts{action: ActionPass, proto: ProtoAny}}
}

// Pass sets the rule action to pass.
func (b *Builder) Pass() *Builder {
	if b.err != nil {
		return b
	}
	b.parts.action = ActionPass
	return b
}

// Block sets the rule action to block.
func (b *Builder) Block() *Builder {
	if b.err != nil {
		return b
	}
	b.parts.action = ActionBlock
	return b
}

// Quick marks the rule as short-circuiting: the first matching quick rule
// wins.
func (b *Builder) Quick() *Builder {
	if b.err != nil {
		return b
	}
	b.parts.quick = true
	return b
}

// Proto sets the transport protocol from its lowercased name.
func (b *Builder) Proto(proto string) *Builder {
	if b.err != nil {
		return b
	}
	switch strings.ToLower(proto) {
	case "tcp":
		b.parts.proto = ProtoTCP
	case "udp":
		b.parts.proto = ProtoUDP
	default:
		b.err = errors.New(errors.KindInvalidInput, "invalid protocol must be `tcp` or `udp`")
	}
	return b
}

// SetIPv4 sets the rule family to IPv4. Build fails when this disagrees
// with the addresses set before it; a FromAddr or ToAddr call made after it
// replaces the family without any check.
func (b *Builder) SetIPv4() *Builder {
	if b.err != nil {
		return b
	}
	b.parts.ipv6 = false
	return b
}

// SetIPv6 sets the rule family to IPv6, with the same check as SetIPv4.
func (b *Builder) SetIPv6() *Builder {
	if b.err != nil {
		return b
	}
	b.parts.ipv6 = true
	return b
}

// FromAddr sets the source from an `IP` or `IP:port` string and infers the
// family from it.
func (b *Builder) FromAddr(src string) *Builder {
	if b.err != nil {
		return b
	}
	addr, err := parseAddrPort(src)
	if err != nil {
		b.err = err
		return b
	}
	b.parts.ipv6 = !addr.Addr().Is4()
	b.parts.saddr = addr
	b.parts.hasSrc = true
	return b
}

// ToAddr sets the destination from an `IP` or `IP:port` string and infers
// the family from it.
func (b *Builder) ToAddr(dst string) *Builder {
	if b.err != nil {
		return b
	}
	addr, err := parseAddrPort(dst)
	if err != nil {
		b.err = err
		return b
	}
	b.parts.ipv6 = !addr.Addr().Is4()
	b.parts.daddr = addr
	b.parts.hasDst = true
	return b
}

// FromPort sets the source port, creating a zero source address of the
// current family when none is set.
func (b *Builder) FromPort(port uint16) *Builder {
	if b.err != nil {
		return b
	}
	if !b.parts.hasSrc {
		b.parts.saddr = netip.AddrPortFrom(zeroAddr(b.parts.ipv6), 0)
		b.parts.hasSrc = true
	}
	b.parts.saddr = netip.AddrPortFrom(b.parts.saddr.Addr(), port)
	return b
}

// ToPort sets the destination port, creating a zero destination address of
// the current family when none is set.
func (b *Builder) ToPort(port uint16) *Builder {
	if b.err != nil {
		return b
	}
	if !b.parts.hasDst {
		b.parts.daddr = netip.AddrPortFrom(zeroAddr(b.parts.ipv6), 0)
		b.parts.hasDst = true
	}
	b.parts.daddr = netip.AddrPortFrom(b.parts.daddr.Addr(), port)
	return b
}

// PassAll produces a default rule that passes unmatched packets.
func (b *Builder) PassAll() (Rule, error) {
	if b.err != nil {
		return Rule{}, b.err
	}
	return Rule{kind: KindDefault, action: ActionPass}, nil
}

// BlockAll produces a default rule that blocks unmatched packets.
func (b *Builder) BlockAll() (Rule, error) {
	if b.err != nil {
		return Rule{}, b.err
	}
	return Rule{kind: KindDefault, action: ActionBlock}, nil
}

// Build validates the staged parts and encodes them into a Rule. Addresses
// and ports are written into the wire record in network byte order.
func (b *Builder) Build() (Rule, error) {
	if b.err != nil {
		return Rule{}, b.err
	}
	p := b.parts

	var is6 bool
	switch {
	case p.hasSrc && p.hasDst:
		// With both src and dst set they must be of the same IP version.
		if p.saddr.Addr().Is4() != p.daddr.Addr().Is4() {
			return Rule{}, errors.New(errors.KindBuild, "src & dst IP versions do not match")
		}
		is6 = !p.saddr.Addr().Is4()
	case p.hasSrc:
		is6 = !p.saddr.Addr().Is4()
	case p.hasDst:
		is6 = !p.daddr.Addr().Is4()
	default:
		is6 = p.ipv6
	}

	if is6 != p.ipv6 {
		return Rule{}, errors.New(errors.KindBuild, "IP version mismatch")
	}

	var raw RawRule
	if p.hasSrc {
		if a := p.saddr.Addr(); a.Is4() {
			raw.Saddr4 = addr4(a)
		} else {
			raw.Saddr6 = a.As16()
		}
		raw.Sport = port16(b.parts.saddr.Port())
	}
	if p.hasDst {
		if a := p.daddr.Addr(); a.Is4() {
			raw.Daddr4 = addr4(a)
		} else {
			raw.Daddr6 = a.As16()
		}
		raw.Dport = port16(b.parts.daddr.Port())
	}

	raw.Action = uint32(p.action)
	if p.quick {
		raw.Quick = 1
	}
	raw.Proto = uint32(p.proto)

	kind := KindIPv4
	if is6 {
		kind = KindIPv6
	}
	return Rule{kind: kind, raw: raw}, nil
}

// parseAddrPort accepts `IP` or `IP:port` (IPv6 with port in `[...]:port`
// form).
func parseAddrPort(s string) (netip.AddrPort, error) {
	if addr, err := netip.ParseAddr(s); err == nil {
		return netip.AddrPortFrom(addr, 0), nil
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return netip.AddrPort{}, errors.Errorf(errors.KindInvalidInput, "invalid address `%s`", s)
	}
	return ap, nil
}

func zeroAddr(ipv6 bool) netip.Addr {
	if ipv6 {
		return netip.IPv6Unspecified()
	}
	return netip.IPv4Unspecified()
}

// addr4 returns the container word for an IPv4 address: the network-order
// bytes read as a little-endian u32.
func addr4(a netip.Addr) uint32 {
	b := a.As4()
	return binary.LittleEndian.Uint32(b[:])
}

// port16 returns the container word for a port: the network-order bytes
// read as a little-endian u16.
func port16(p uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], p)
	return binary.LittleEndian.Uint16(b[:])
}

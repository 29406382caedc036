// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rule

import (
	"bytes"
	"encoding/binary"

	"grimm.is/pfrs/internal/errors"
)

// Action is a rule verdict. The zero value is reserved for "no action" so
// unpopulated map slots never match.
type Action uint32

const (
	ActionNoop  Action = 0
	ActionBlock Action = 1
	ActionPass  Action = 2
)

func (a Action) String() string {
	switch a {
	case ActionBlock:
		return "block"
	case ActionPass:
		return "pass"
	default:
		return "noop"
	}
}

// Proto is a transport protocol selector, encoded with the IANA protocol
// numbers. ProtoAny matches every protocol.
type Proto uint32

const (
	ProtoAny Proto = 0
	ProtoTCP Proto = 6
	ProtoUDP Proto = 17
)

func (p Proto) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoUDP:
		return "udp"
	default:
		return "any"
	}
}

// RawRule is the wire record shared with the in-kernel program. Port and
// address fields hold network-order payloads; the container words are
// serialized little-endian, which is what the program reads natively.
// Zero ports and zero addresses mean "any".
type RawRule struct {
	Action uint32
	Quick  uint32
	Proto  uint32
	Sport  uint16
	Dport  uint16
	Saddr4 uint32
	Daddr4 uint32
	Saddr6 [16]byte
	Daddr6 [16]byte
}

// Size is the serialized length of a RawRule in bytes; it must equal the
// value size of the in-kernel rule maps.
const Size = 56

// Marshal serializes the record: fields packed in declaration order,
// container words little-endian.
func (r *RawRule) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(Size)
	if err := binary.Write(&buf, binary.LittleEndian, r); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "rule serializer failed")
	}
	return buf.Bytes(), nil
}

// Unmarshal deserializes a record produced by Marshal.
func (r *RawRule) Unmarshal(data []byte) error {
	if len(data) != Size {
		return errors.Errorf(errors.KindInternal, "invalid rule record length %d", len(data))
	}
	return errors.Wrap(
		binary.Read(bytes.NewReader(data), binary.LittleEndian, r),
		errors.KindInternal, "rule deserializer failed")
}

// Kind discriminates the rule variants.
type Kind int

const (
	KindDefault Kind = iota // sets the rule-set default action
	KindIPv4                // matches IPv4 packets
	KindIPv6                // matches IPv6 packets
)

// Rule is one built filter rule. It is immutable once produced by a Builder.
type Rule struct {
	kind   Kind
	action Action // default rules only
	raw    RawRule
}

// Kind returns the rule variant.
func (r Rule) Kind() Kind {
	return r.kind
}

// DefaultAction returns the action of a default rule.
func (r Rule) DefaultAction() Action {
	return r.action
}

// Raw returns the wire record of an IPv4 or IPv6 rule.
func (r Rule) Raw() RawRule {
	return r.raw
}

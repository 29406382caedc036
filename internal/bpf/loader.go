// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bpf

import (
	"strings"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"

	"grimm.is/pfrs/internal/errors"
)

// Loader owns a loaded BPF object: its maps, keyed by name with their
// key/value sizes captured, and its programs (typically one).
type Loader struct {
	collection *ebpf.Collection
	maps       map[string]*mapHandle
	progs      []*ebpf.Program
}

type mapHandle struct {
	m         *ebpf.Map
	fd        int
	keySize   uint32
	valueSize uint32
}

// LoadFromFile opens the object file at path and loads it into the kernel.
// The path must name a `.o` file.
func LoadFromFile(path string) (*Loader, error) {
	if !strings.HasSuffix(path, ".o") {
		return nil, errors.Errorf(errors.KindInvalidInput, "filename does not have .o extension: %s", path)
	}

	spec, err := ebpf.LoadCollectionSpec(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindSystem, "failed to open bpf object")
	}

	// The rule maps charge against RLIMIT_MEMLOCK on older kernels.
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, errors.Wrap(err, errors.KindSystem, "failed to lift memlock limit")
	}

	collection, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindSystem, "failed to load bpf object")
	}

	l := &Loader{
		collection: collection,
		maps:       make(map[string]*mapHandle),
	}

	for name, m := range collection.Maps {
		info, err := m.Info()
		if err != nil {
			collection.Close()
			return nil, errors.Wrapf(err, errors.KindSystem, "failed to get info for map %s", name)
		}
		l.maps[name] = &mapHandle{
			m:         m,
			fd:        m.FD(),
			keySize:   info.KeySize,
			valueSize: info.ValueSize,
		}
	}

	for _, prog := range collection.Programs {
		l.progs = append(l.progs, prog)
	}

	return l, nil
}

// UpdateMap writes a raw key/value pair into the named map. Key and value
// lengths must match the map's declared sizes.
func (l *Loader) UpdateMap(name string, key, value []byte, flags uint64) error {
	h, ok := l.maps[name]
	if !ok {
		return errors.Errorf(errors.KindInvalidInput, "unknown map %s", name)
	}

	if len(key) != int(h.keySize) {
		return errors.Errorf(errors.KindInvalidInput, "invalid key size for map %s: got %d, want %d", name, len(key), h.keySize)
	}
	if len(value) != int(h.valueSize) {
		return errors.Errorf(errors.KindInvalidInput, "invalid value size for map %s: got %d, want %d", name, len(value), h.valueSize)
	}

	if err := h.m.Update(key, value, ebpf.MapUpdateFlags(flags)); err != nil {
		return errors.Attr(
			errors.Wrapf(err, errors.KindSystem, "failed to update map %s", name),
			"fd", h.fd)
	}
	return nil
}

// AttachXDP attaches the object's program to the XDP hook on the given
// interface, returning the link whose Close detaches it.
func (l *Loader) AttachXDP(ifindex int) (link.Link, error) {
	if len(l.progs) == 0 {
		return nil, errors.New(errors.KindSystem, "failed to retrieve prog")
	}

	lnk, err := link.AttachXDP(link.XDPOptions{
		Program:   l.progs[0],
		Interface: ifindex,
	})
	if err != nil {
		return nil, errors.Attr(
			errors.Wrap(err, errors.KindSystem, "could not attach prog to xdp hook"),
			"ifindex", ifindex)
	}
	return lnk, nil
}

// Close releases the kernel object and every map and program it owns.
// Attached links are owned by the caller and stay alive until closed.
func (l *Loader) Close() error {
	if l.collection != nil {
		l.collection.Close()
		l.collection = nil
	}
	l.maps = nil
	l.progs = nil
	return nil
}

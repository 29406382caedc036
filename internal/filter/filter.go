// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package filter

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/cilium/ebpf/link"
	"github.com/vishvananda/netlink"

	"grimm.is/pfrs/internal/bpf"
	"grimm.is/pfrs/internal/errors"
	"grimm.is/pfrs/internal/logging"
	"grimm.is/pfrs/internal/rule"
)

// Map names shared with the in-kernel program.
const (
	ipv4MapName = "ipv4_rules"
	ipv6MapName = "ipv6_rules"
)

// Filter is the rule-set container: the default action plus the ordered
// rule lists per IP version. The position of a rule in its list is its key
// in the in-kernel map.
type Filter struct {
	defaultAction rule.Action
	ipv4Rules     []rule.RawRule
	ipv6Rules     []rule.RawRule
	logger        *logging.Logger
}

// New creates an empty Filter whose default action is pass.
func New(logger *logging.Logger) *Filter {
	return &Filter{
		defaultAction: rule.ActionPass,
		logger:        logger,
	}
}

// AddRule appends a rule to the list for its IP version; a default rule
// overwrites the default action instead.
func (f *Filter) AddRule(r rule.Rule) {
	switch r.Kind() {
	case rule.KindIPv4:
		f.ipv4Rules = append(f.ipv4Rules, r.Raw())
	case rule.KindIPv6:
		f.ipv6Rules = append(f.ipv6Rules, r.Raw())
	case rule.KindDefault:
		f.defaultAction = r.DefaultAction()
	}
}

// AddRules appends rules in order.
func (f *Filter) AddRules(rules []rule.Rule) {
	for _, r := range rules {
		f.AddRule(r)
	}
}

// DefaultAction returns the verdict for unmatched packets.
func (f *Filter) DefaultAction() rule.Action {
	return f.defaultAction
}

// IPv4Rules returns the ordered IPv4 wire records.
func (f *Filter) IPv4Rules() []rule.RawRule {
	return f.ipv4Rules
}

// IPv6Rules returns the ordered IPv6 wire records.
func (f *Filter) IPv6Rules() []rule.RawRule {
	return f.ipv6Rules
}

func (f *Filter) params() bpf.Params {
	return bpf.Params{
		DefaultAction: uint32(f.defaultAction),
		IPv4RuleCount: len(f.ipv4Rules),
		IPv6RuleCount: len(f.ipv6Rules),
	}
}

// Attachment holds the loaded object and its XDP link. Closing it detaches
// the program and releases the kernel object.
type Attachment struct {
	loader *bpf.Loader
	link   link.Link
}

// Close detaches the program, then closes the object.
func (a *Attachment) Close() error {
	var firstErr error
	if a.link != nil {
		if err := a.link.Close(); err != nil {
			firstErr = err
		}
		a.link = nil
	}
	if a.loader != nil {
		if err := a.loader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.loader = nil
	}
	return firstErr
}

// LoadOn generates the XDP program for this rule-set, compiles and loads
// it, populates the rule maps, and attaches it to the interface. The maps
// are fully populated before the attach, so the kernel never evaluates a
// partial rule-set.
func (f *Filter) LoadOn(ifindex int) (*Attachment, error) {
	lnk, err := netlink.LinkByIndex(ifindex)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindSystem, "no interface with index %d", ifindex)
	}
	f.logger.Debug("resolved interface", "ifindex", ifindex, "name", lnk.Attrs().Name)

	loader, err := f.generateAndLoad()
	if err != nil {
		return nil, err
	}

	if err := f.populate(loader); err != nil {
		loader.Close()
		return nil, err
	}

	xdpLink, err := loader.AttachXDP(ifindex)
	if err != nil {
		loader.Close()
		return nil, err
	}
	f.logger.Info("attached xdp program",
		"interface", lnk.Attrs().Name,
		"default", f.defaultAction.String(),
		"ipv4_rules", len(f.ipv4Rules),
		"ipv6_rules", len(f.ipv6Rules))

	return &Attachment{loader: loader, link: xdpLink}, nil
}

// Generate writes the source artifacts and the compiled object into dir
// without loading anything.
func (f *Filter) Generate(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "could not create %s", dir)
	}

	srcPath, err := bpf.WriteSource(dir, f.params())
	if err != nil {
		return err
	}
	if err := bpf.Compile(srcPath, filepath.Join(dir, bpf.ObjectName)); err != nil {
		return err
	}

	f.logger.Info("generated artifacts", "dir", dir)
	return nil
}

// generateAndLoad materializes the program in per-invocation temp
// directories, compiles it, and loads the object. The directories are
// removed before returning; the kernel holds the object from here on.
func (f *Filter) generateAndLoad() (*bpf.Loader, error) {
	srcDir, err := os.MkdirTemp("", "pfrs-src-")
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "error creating temp dir")
	}
	defer os.RemoveAll(srcDir)

	objDir, err := os.MkdirTemp("", "pfrs-obj-")
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "error creating temp dir")
	}
	defer os.RemoveAll(objDir)

	srcPath, err := bpf.WriteSource(srcDir, f.params())
	if err != nil {
		return nil, err
	}

	objPath := filepath.Join(objDir, bpf.ObjectName)
	if err := bpf.Compile(srcPath, objPath); err != nil {
		return nil, err
	}
	f.logger.Debug("compiled bpf object", "obj", objPath)

	return bpf.LoadFromFile(objPath)
}

// populate writes every rule record into its map slot, keyed by list index.
func (f *Filter) populate(loader *bpf.Loader) error {
	write := func(name string, rules []rule.RawRule) error {
		for i := range rules {
			value, err := rules[i].Marshal()
			if err != nil {
				return err
			}

			var key [4]byte
			binary.NativeEndian.PutUint32(key[:], uint32(i))

			if err := loader.UpdateMap(name, key[:], value, 0); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(ipv4MapName, f.ipv4Rules); err != nil {
		return err
	}
	return write(ipv6MapName, f.ipv6Rules)
}

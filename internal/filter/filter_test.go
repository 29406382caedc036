// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package filter

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/pfrs/internal/bpf"
	"grimm.is/pfrs/internal/logging"
	"grimm.is/pfrs/internal/rule"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError})
}

func mustBuild(t *testing.T, b *rule.Builder) rule.Rule {
	t.Helper()
	r, err := b.Build()
	require.NoError(t, err)
	return r
}

func TestAddRuleDispatch(t *testing.T) {
	f := New(testLogger())
	assert.Equal(t, rule.ActionPass, f.DefaultAction())

	f.AddRule(mustBuild(t, rule.NewBuilder().Block().FromAddr("1.1.1.1")))
	f.AddRule(mustBuild(t, rule.NewBuilder().Block().FromAddr("::1")))
	f.AddRule(mustBuild(t, rule.NewBuilder().Pass().FromAddr("2.2.2.2")))

	def, err := rule.NewBuilder().BlockAll()
	require.NoError(t, err)
	f.AddRule(def)

	assert.Len(t, f.IPv4Rules(), 2)
	assert.Len(t, f.IPv6Rules(), 1)
	assert.Equal(t, rule.ActionBlock, f.DefaultAction())
}

func TestInsertionOrderPreserved(t *testing.T) {
	f := New(testLogger())

	addrs := []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"}
	for _, a := range addrs {
		f.AddRule(mustBuild(t, rule.NewBuilder().Block().FromAddr(a)))
	}

	rules := f.IPv4Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, uint32(0x01010101), rules[0].Saddr4)
	assert.Equal(t, uint32(0x02020202), rules[1].Saddr4)
	assert.Equal(t, uint32(0x03030303), rules[2].Saddr4)
}

func TestParams(t *testing.T) {
	f := New(testLogger())
	f.AddRule(mustBuild(t, rule.NewBuilder().Block().FromAddr("1.1.1.1")))

	p := f.params()
	assert.Equal(t, uint32(rule.ActionPass), p.DefaultAction)
	assert.Equal(t, 1, p.IPv4RuleCount)
	assert.Equal(t, 0, p.IPv6RuleCount)
}

func TestGenerate(t *testing.T) {
	if _, err := exec.LookPath("clang"); err != nil {
		t.Skip("clang not available")
	}

	f := New(testLogger())
	f.AddRule(mustBuild(t, rule.NewBuilder().Block().FromAddr("10.0.0.1").ToAddr("10.0.0.2")))

	dir := filepath.Join(t.TempDir(), "target")
	require.NoError(t, f.Generate(dir))

	for _, name := range []string{bpf.VmlinuxName, bpf.SourceName, bpf.ObjectName} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, "missing artifact %s", name)
		assert.NotZero(t, info.Size(), "empty artifact %s", name)
	}
}

// TestLoadOnLoopback drives the full pipeline against the kernel: compile,
// load, populate and attach on the loopback interface, then detach.
func TestLoadOnLoopback(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("attaching XDP programs requires root privileges")
	}
	if _, err := exec.LookPath("clang"); err != nil {
		t.Skip("clang not available")
	}

	f := New(testLogger())
	f.AddRule(mustBuild(t, rule.NewBuilder().Block().FromAddr("203.0.113.7")))
	f.AddRule(mustBuild(t, rule.NewBuilder().Block().FromAddr("2001:db8::7")))

	const loopback = 1
	attachment, err := f.LoadOn(loopback)
	if err != nil {
		t.Fatalf("LoadOn failed: %v", err)
	}
	require.NoError(t, attachment.Close())
}

func TestLoadOnUnknownInterface(t *testing.T) {
	f := New(testLogger())
	_, err := f.LoadOn(1 << 20)
	require.Error(t, err)
}

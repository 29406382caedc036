// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bpf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderParameterization(t *testing.T) {
	src := Render(Params{DefaultAction: 2, IPv4RuleCount: 3, IPv6RuleCount: 1})

	for _, want := range []string{
		`#include "vmlinux.h"`,
		"#include <bpf/bpf_helpers.h>",
		"#include <bpf/bpf_endian.h>",
		"#define ETH_P_IP 0x0800",
		"#define ETH_P_IPV6 0x86DD",
		"#define IPPROTO_TCP 6",
		"#define IPPROTO_UDP 17",
		"#define IPV6_ADDR_LEN 16",
		"#define NOOP 0",
		"#define DEFAULT_ACTION 2",
		"#define IPV4_RULE_COUNT 3",
		"#define IPV6_RULE_COUNT 1",
		"ipv4_rules SEC(\".maps\")",
		"ipv6_rules SEC(\".maps\")",
		"SEC(\"xdp\")",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("rendered source missing %q", want)
		}
	}

	// Includes come before defines, defines before the program body.
	if strings.Index(src, "vmlinux.h") > strings.Index(src, "ETH_P_IP") {
		t.Error("includes must precede the defines block")
	}
	if strings.Index(src, "DEFAULT_ACTION") > strings.Index(src, "struct rule") {
		t.Error("parameters must precede the program body")
	}
}

func TestRenderClampsEmptyCounts(t *testing.T) {
	src := Render(Params{DefaultAction: 1})

	if !strings.Contains(src, "#define IPV4_RULE_COUNT 1") {
		t.Error("empty IPv4 list must still size the array map to 1")
	}
	if !strings.Contains(src, "#define IPV6_RULE_COUNT 1") {
		t.Error("empty IPv6 list must still size the array map to 1")
	}
}

func TestWriteSource(t *testing.T) {
	dir := t.TempDir()

	srcPath, err := WriteSource(dir, Params{DefaultAction: 2, IPv4RuleCount: 2})
	if err != nil {
		t.Fatalf("WriteSource failed: %v", err)
	}

	if srcPath != filepath.Join(dir, SourceName) {
		t.Errorf("unexpected source path %s", srcPath)
	}

	src, err := os.ReadFile(srcPath)
	if err != nil {
		t.Fatalf("source not written: %v", err)
	}
	if !strings.Contains(string(src), "#define IPV4_RULE_COUNT 2") {
		t.Error("written source not parameterized")
	}

	hdr, err := os.ReadFile(filepath.Join(dir, VmlinuxName))
	if err != nil {
		t.Fatalf("vmlinux.h not written: %v", err)
	}
	if !strings.Contains(string(hdr), "struct xdp_md") {
		t.Error("vmlinux.h missing expected types")
	}
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bpf

import (
	"fmt"
	"os"
	"path/filepath"

	"grimm.is/pfrs/internal/errors"
)

// SourceName and ObjectName are the artifact file names, both for the
// temporary build directories and for generate-only output.
const (
	SourceName  = "pfdebug.bpf.c"
	ObjectName  = "pfdebug.o"
	VmlinuxName = "vmlinux.h"
)

const includeHeaders = `// SPDX-License-Identifier: BSD-3-Clause
#include "vmlinux.h"
#include <bpf/bpf_helpers.h>
#include <bpf/bpf_endian.h>
`

const defines = `#define ETH_P_IP 0x0800
#define ETH_P_IPV6 0x86DD
#define IPPROTO_TCP 6
#define IPPROTO_UDP 17
#define IPV6_ADDR_LEN 16
#define NOOP 0
`

// Params bind the emitted program to one rule-set.
type Params struct {
	DefaultAction uint32
	IPv4RuleCount int
	IPv6RuleCount int
}

// Render assembles the C source: includes, constants, the rule-set
// parameters, then the program body. Rule counts are clamped to 1 so empty
// array maps stay well-formed.
func Render(p Params) string {
	params := fmt.Sprintf(
		"#define DEFAULT_ACTION %d\n#define IPV4_RULE_COUNT %d\n#define IPV6_RULE_COUNT %d\n",
		p.DefaultAction, atLeastOne(p.IPv4RuleCount), atLeastOne(p.IPv6RuleCount))

	return includeHeaders + defines + params + programBody
}

// WriteSource writes the parameterized program and its vmlinux.h into dir,
// returning the source path.
func WriteSource(dir string, p Params) (string, error) {
	srcPath := filepath.Join(dir, SourceName)
	if err := os.WriteFile(srcPath, []byte(Render(p)), 0o644); err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "could not write src code")
	}

	hdrPath := filepath.Join(dir, VmlinuxName)
	if err := os.WriteFile(hdrPath, []byte(vmlinuxHeader), 0o644); err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "could not write vmlinux header")
	}

	return srcPath, nil
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

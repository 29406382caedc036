// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bpf

import _ "embed"

// The XDP program body and the kernel headers it compiles against are data
// assets; the body is parameterized only through the #define block the
// emitter prepends.

//go:embed c/pf.bpf.c
var programBody string

//go:embed c/vmlinux.h
var vmlinuxHeader string

//go:embed c/bpf_helpers.h
var helpersHeader string

//go:embed c/bpf_endian.h
var endianHeader string

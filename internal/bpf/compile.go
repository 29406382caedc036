// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bpf

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"grimm.is/pfrs/internal/errors"
)

// Compile invokes clang to build the BPF object from src into dst. The
// bundled libbpf headers are written to a temp directory for the include
// path; a non-zero exit surfaces clang's stderr.
func Compile(src, dst string) error {
	hdrDir, err := writeIncludeHeaders()
	if err != nil {
		return err
	}
	defer os.RemoveAll(hdrDir)

	args := []string{
		"-I" + hdrDir,
		"-g",
		"-O2",
		"-target", "bpf",
		"-c",
		"-D__TARGET_ARCH_" + targetArch(),
		src,
		"-o", dst,
	}

	var stderr bytes.Buffer
	cmd := exec.Command("clang", args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return errors.Errorf(errors.KindCompile,
			"clang failed to compile BPF program: %v: %s", err, stderr.String())
	}
	return nil
}

// writeIncludeHeaders materializes the bundled headers under <tmp>/bpf so
// `#include <bpf/...>` resolves against the returned directory.
func writeIncludeHeaders() (string, error) {
	tmp, err := os.MkdirTemp("", "pfrs-headers-")
	if err != nil {
		return "", errors.Wrap(err, errors.KindCompile, "error creating temp dir")
	}

	hdrs := filepath.Join(tmp, "bpf")
	if err := os.MkdirAll(hdrs, 0o755); err != nil {
		os.RemoveAll(tmp)
		return "", errors.Wrap(err, errors.KindCompile, "error creating headers dir")
	}

	files := map[string]string{
		"bpf_helpers.h": helpersHeader,
		"bpf_endian.h":  endianHeader,
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(hdrs, name), []byte(data), 0o644); err != nil {
			os.RemoveAll(tmp)
			return "", errors.Wrapf(err, errors.KindCompile, "could not write %s", name)
		}
	}

	return tmp, nil
}

// targetArch maps the Go arch name onto the kernel's __TARGET_ARCH_
// convention.
func targetArch() string {
	switch runtime.GOARCH {
	case "amd64", "386":
		return "x86"
	case "arm64":
		return "arm64"
	default:
		return runtime.GOARCH
	}
}

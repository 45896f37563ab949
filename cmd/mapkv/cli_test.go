package main

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	. "github.com/stevegt/goadapt"
)

// runCli runs the CLI against a bolt store in dir and returns its output.
func runCli(t *testing.T, dir string, args ...string) (stdout, stderr string, rc int) {
	t.Helper()
	var out, errOut bytes.Buffer
	SetStdio(nil, &out, &errOut)
	defer SetStdio(nil, nil, nil)

	config := NewCliConfig()
	config.Stdout = &out
	config.Stderr = &errOut
	config.Exit = func(code int) { rc = code }

	full := append([]string{"--path", dir, "--engine", "bolt", "--map-size", "1048576"}, args...)
	code, err := Cli(full, config)
	Tassert(t, err == nil, "mapkv %v: %v\nstderr:\n%s", args, err, errOut.String())
	if rc == 0 {
		rc = code
	}
	return out.String(), errOut.String(), rc
}

func TestCliPutGet(t *testing.T) {
	dir := t.TempDir()

	_, _, rc := runCli(t, dir, "put", "hello", "world")
	Tassert(t, rc == 0, "put rc %d", rc)

	out, _, rc := runCli(t, dir, "get", "hello")
	Tassert(t, rc == 0, "get rc %d", rc)
	Tassert(t, out == "world\n", "get output %q", out)

	_, stderr, rc := runCli(t, dir, "get", "absent")
	Tassert(t, rc == 1, "missing key rc %d", rc)
	Tassert(t, strings.Contains(stderr, "not found"), "stderr %q", stderr)
}

func TestCliBatch(t *testing.T) {
	dir := t.TempDir()

	out, _, rc := runCli(t, dir, "batch", "k1=v1", "k2=v2")
	Tassert(t, rc == 0, "batch rc %d", rc)
	Tassert(t, strings.Contains(out, "committed 2 writes"), "batch output %q", out)

	out, _, _ = runCli(t, dir, "get", "k2")
	Tassert(t, out == "v2\n", "k2 output %q", out)

	out, _, rc = runCli(t, dir, "batch", "--abort", "k3=v3")
	Tassert(t, rc == 0, "abort rc %d", rc)
	Tassert(t, strings.Contains(out, "aborted 1 writes"), "abort output %q", out)

	_, _, rc = runCli(t, dir, "get", "k3")
	Tassert(t, rc == 1, "aborted key readable, rc %d", rc)

	_, stderr, rc := runCli(t, dir, "batch", "novalue")
	Tassert(t, rc == 2, "bad pair rc %d", rc)
	Tassert(t, strings.Contains(stderr, "bad pair"), "stderr %q", stderr)
}

func TestCliInfo(t *testing.T) {
	dir := t.TempDir()

	out, _, rc := runCli(t, dir, "--durable", "info")
	Tassert(t, rc == 0, "info rc %d", rc)
	Tassert(t, strings.Contains(out, "engine:  bolt"), "info output %q", out)
	Tassert(t, strings.Contains(out, "flags:   Durable"), "info output %q", out)
	Tassert(t, !strings.Contains(out, "entries:"), "bolt reports usage: %q", out)
}

func TestCliUnknownEngine(t *testing.T) {
	var out, errOut bytes.Buffer
	config := NewCliConfig()
	config.Stdout = &out
	config.Stderr = &errOut
	config.Exit = func(int) {}

	rc, err := Cli([]string{"--path", t.TempDir(), "--engine", "nope", "info"}, config)
	Tassert(t, err == nil, "unexpected error %v", err)
	Tassert(t, rc == 2, "rc %d", rc)
	Tassert(t, strings.Contains(errOut.String(), "unknown engine"), "stderr %q", errOut.String())
}

func TestCliVersion(t *testing.T) {
	out, _, rc := runCli(t, t.TempDir(), "version")
	Tassert(t, rc == 0, "version rc %d", rc)
	Tassert(t, strings.HasPrefix(out, "mapkv v"), "version output %q", out)
	Tassert(t, strings.Contains(out, runtime.GOOS+"/"+runtime.GOARCH), "version output %q", out)
}

package main

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
)

const childEnv = "ISOSERVE_RUN_MAIN"

// runMain re-executes the test binary so that main can call os.Exit.
func runMain(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=TestMainChild")
	cmd.Env = append(os.Environ(), childEnv+"="+strings.Join(args, "\x1f"))
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return out.String(), errOut.String(), 0
	case errors.As(err, &exitErr):
		return out.String(), errOut.String(), exitErr.ExitCode()
	default:
		t.Fatal(err)
		return "", "", -1
	}
}

func TestMainChild(t *testing.T) {
	raw, ok := os.LookupEnv(childEnv)
	if !ok {
		t.Skip("only runs as a child process")
	}
	args := []string{"isoserve"}
	if raw != "" {
		args = append(args, strings.Split(raw, "\x1f")...)
	}
	os.Args = args
	main()
}

func TestMainInvalidPort(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "not an integer", args: []string{"abc"}},
		{name: "out of range", args: []string{"70000"}},
		{name: "missing dir", args: []string{"-dir", "/definitely/not/here", "9000"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			stdout, stderr, code := runMain(t, test.args...)
			if code == 0 {
				t.Fatalf("expected a non-zero exit, stderr:\n%s", stderr)
			}
			if strings.Contains(stdout, "Server running at") {
				t.Errorf("banner printed although the config is invalid:\n%s", stdout)
			}
		})
	}
}

// Package buildinfo reports the binary's version and build metadata.
//
// Release builds inject the variables via ldflags; development builds fall
// back to whatever module information the Go toolchain embedded.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the release tag, injected with
	// -X github.com/openhydro/sewerflow/pkg/buildinfo.Version=v1.2.3.
	Version = "dev"

	// Commit is the git revision the binary was built from.
	Commit = ""

	// Date is the build timestamp in RFC 3339.
	Date = ""
)

func init() {
	if Commit != "" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			Commit = s.Value
		case "vcs.time":
			Date = s.Value
		}
	}
}

// String returns a single-line version summary.
func String() string {
	out := Version
	if Commit != "" {
		out += fmt.Sprintf(" (%s)", short(Commit))
	}
	if Date != "" {
		out += " built " + Date
	}
	return out
}

// Template returns the cobra version template.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s\n", String())
}

func short(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

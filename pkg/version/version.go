package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the current application version.
// This is a var (not const) so it can be overridden at build time via:
//
//	go build -ldflags "-X github.com/vanderheijden86/pulseboard/pkg/version.Version=v1.2.3"
var Version = "v0.1.0"

// String is the one-line banner printed by `pulse version`.
func String() string {
	rev := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				rev = s.Value[:7]
			}
		}
	}
	return fmt.Sprintf("pulse %s (%s, %s/%s)", Version, rev, runtime.GOOS, runtime.GOARCH)
}

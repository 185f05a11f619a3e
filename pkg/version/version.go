// Package version carries build metadata set through -ldflags, e.g.
//
//	-X github.com/1000xsh/voteperfx/pkg/version.Version=v0.3.0
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Built   = "unknown"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	GoVersion string `json:"go_version"`
}

func Info() BuildInfo {
	return BuildInfo{Version: Version, Commit: Commit, Built: Built, GoVersion: runtime.Version()}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("voteperfx version %s, commit %s, built %s (%s)", b.Version, b.Commit, b.Built, b.GoVersion)
}

package handlers

import (
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
)

// Build metadata reported by /version. main sets it once at startup.
var (
	AppName      = "wishmail"
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"

	versionMu sync.RWMutex
	startedAt = time.Now()
)

// SetVersionInfo records the linker-injected build metadata.
func SetVersionInfo(version, commit, buildDate string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

// SetAppName overrides the reported binary name. Blank names are ignored.
func SetAppName(name string) {
	if name = strings.TrimSpace(name); name == "" {
		return
	}
	versionMu.Lock()
	AppName = name
	versionMu.Unlock()
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumGoroutines int    `json:"num_goroutines"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// VersionHandler handles GET /version.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CurrentVersion())
}

// CurrentVersion assembles the version payload.
func CurrentVersion() VersionResponse {
	deps := crucible.GetVersion()

	versionMu.RLock()
	app := AppInfo{
		Name:      AppName,
		Version:   AppVersion,
		Commit:    AppCommit,
		BuildDate: AppBuildDate,
		GoVersion: runtime.Version(),
	}
	versionMu.RUnlock()

	return VersionResponse{
		App:          app,
		Dependencies: DepInfo{Gofulmen: deps.Gofulmen, Crucible: deps.Crucible},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumGoroutines: runtime.NumGoroutine(),
			UptimeSeconds: int64(time.Since(startedAt).Seconds()),
		},
	}
}

package buildconfig

// Build-time variables injected via ldflags:
//
//	-X github.com/coderisedev/cs-sub003/internal/buildconfig.version=v1.2.0
var (
	version = "dev"
	commit  = "unknown"
)

const serviceName = "tenancy"

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// VersionInfo is reported on /health.
func VersionInfo() map[string]string {
	return map[string]string{
		"version": version,
		"commit":  commit,
	}
}

// UserAgent identifies this service to the commerce backends.
func UserAgent() string {
	return serviceName + "/" + version + " (" + commit + ")"
}

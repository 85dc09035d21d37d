package version

import "runtime"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// Info is the build metadata served on the admin surface.
type Info struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the build metadata of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		GitSHA:    GitSHA,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String formats the metadata for log lines and -version output.
func (i Info) String() string {
	return i.Version + " (" + i.GitSHA + ", built " + i.BuildTime + ", " + i.GoVersion + ")"
}

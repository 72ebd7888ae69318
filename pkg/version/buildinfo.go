//Package version carries the build metadata of the radar binary.
//The variables are injected through -ldflags at build time; a plain
//go build leaves the development defaults in place.
package version

import "fmt"

var (
	//Version is the release tag the binary was built from
	Version = "dev"
	//GitHash is the commit the binary was built from
	GitHash = ""
	//BuildDate is the UTC build timestamp
	BuildDate = ""
	//AppName identifies the binary in log banners and sentry events
	AppName = "radar"
)

func GetVersion() string {
	return Version
}

func GetBuildDate() string {
	return BuildDate
}

func GetRepoVersion() string {
	return GitHash
}

func GetAppName() string {
	return AppName
}

//Summary renders the one-line build description printed by -version.
func Summary() string {
	return fmt.Sprintf("%s %s (%s) built %s", AppName, Version, GitHash, BuildDate)
}

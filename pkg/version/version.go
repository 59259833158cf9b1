package version

import "fmt"

var (
	version   = "0.0.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
}

func Get() Info {
	return Info{
		Version:   version,
		GitCommit: gitCommit,
		BuildDate: buildDate,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s) %s", i.Version, i.gitShort(), i.BuildDate)
}

func (i Info) gitShort() string {
	if len(i.GitCommit) > 8 {
		return i.GitCommit[:8]
	}
	return i.GitCommit
}

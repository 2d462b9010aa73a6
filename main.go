package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/liuran001/TubeBot-Go/bot/app"
	"github.com/liuran001/TubeBot-Go/bot/cli"
)

var (
	versionName = ""
	commitSHA   = ""
	buildTime   = ""
)

func main() {
	buildInfo := app.BuildInfo{
		RuntimeVer: runtime.Version(),
		BinVersion: versionName,
		CommitSHA:  commitSHA,
		BuildTime:  buildTime,
		BuildArch:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	if err := cli.NewRootCommand(buildInfo).Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

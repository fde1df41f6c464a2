package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/hpctools/gridtrack/cli"
	"github.com/hpctools/gridtrack/common/log/hooks"
)

func main() {
	log.AddHook(hooks.NewContextHook())

	if err := cli.NewCLI().Exec(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/ralish/cron-sentry/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}

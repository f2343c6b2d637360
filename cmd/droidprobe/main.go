package main

import (
	"github.com/devicelab-dev/droidprobe/pkg/cli"
	_ "github.com/devicelab-dev/droidprobe/pkg/modules"
)

func main() {
	cli.Execute()
}

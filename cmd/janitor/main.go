package main

import (
	"github.com/michaelquigley/pfxlog"
	"github.com/sirupsen/logrus"

	"github.com/jakegut/quickwit/cmd/janitor/subcmd"
)

func init() {
	pfxlog.GlobalInit(logrus.InfoLevel, pfxlog.DefaultOptions().SetTrimPrefix("github.com/jakegut/"))
}

func main() {
	subcmd.Execute()
}

package main

import (
	"chatexport/cmd/chatexport/commands"
	"chatexport/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}

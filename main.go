package main

import (
	"os"

	"hostfetch/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}

package main

import (
	"os"

	"github.com/smazurov/hwvideo/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}

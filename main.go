package main

import (
	"github.com/craftbyte/craftchat/cmd"
)

func main() {
	cmd.Execute()
}

package main

import "github.com/pixelvault/apiserver/cmd"

func main() {
	cmd.Execute()
}

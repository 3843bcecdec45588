package main

import "github.com/kozaktomas/face-orienter/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/secureher/secureher/cmd"

func main() {
	cmd.Execute()
}

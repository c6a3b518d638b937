package main

import "github.com/jcdickinson/rsidebar/cmd"

func main() {
	cmd.Execute()
}

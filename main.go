package main

import "github.com/gaurav-prasanna/pagemeta/cmd"

func main() {
	cmd.Execute()
}

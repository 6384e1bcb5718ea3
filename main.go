package main

import "entrevia/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/leofalp/agentflow/cmd"

func main() {
	cmd.Execute()
}

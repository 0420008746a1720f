package main

import "github.com/vusociu/datn/cmd"

func main() {
	cmd.Execute()
}

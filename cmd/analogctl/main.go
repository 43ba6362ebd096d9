package main

import "github.com/ammarkh95/go-analog/cmd/analogctl/cmd"

func main() {
	cmd.Execute()
}

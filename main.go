package main

import "modhost/cmd"

func main() {
	cmd.Execute()
}

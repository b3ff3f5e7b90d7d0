package main

import "github.com/macilentiores/ChurchStreamGuard/cmd"

func main() {
	cmd.Execute()
}

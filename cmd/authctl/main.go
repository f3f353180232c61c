package main

import "github.com/pilab-dev/talent-auth/cmd/authctl/cmd"

func main() {
	cmd.Execute()
}

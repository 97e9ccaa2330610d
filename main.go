package main

import "memevault-backend/cmd"

func main() {
	cmd.Run()
}

package main

import "heartlink-backend/cmd"

func main() {
	cmd.Run()
}

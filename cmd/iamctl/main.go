package main

import "medrota-iam/cli"

func main() {
	cli.Run()
}

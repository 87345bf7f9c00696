package main

import "github.com/killallgit/huddle/cmd"

func main() {
	cmd.Execute()
}

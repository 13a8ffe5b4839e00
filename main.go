package main

import "github.com/storyforge-dev/storyforge/cmd"

func main() {
	cmd.Execute()
}

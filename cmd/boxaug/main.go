package main

import "github.com/MeKo-Tech/boxaug/cmd/boxaug/cmd"

func main() {
	cmd.Execute()
}

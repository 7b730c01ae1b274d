package main

import "github.com/MeKo-Tech/civicmaps/internal/cmd"

func main() {
	cmd.Execute()
}

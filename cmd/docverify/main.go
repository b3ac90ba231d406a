package main

import "github.com/MeKo-Tech/docverify/cmd/docverify/cmd"

func main() {
	cmd.Execute()
}

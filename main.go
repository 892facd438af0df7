package main

import "github.com/Rishwanth-M/finboard/cmd"

func main() {
	cmd.Execute()
}

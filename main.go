package main

import "github.com/nextlevelbuilder/gateline/cmd"

func main() {
	cmd.Execute()
}

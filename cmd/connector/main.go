package main

import "github.com/akyaiy/GoSally-connector/cmd"

func main() {
	cmd.Execute()
}

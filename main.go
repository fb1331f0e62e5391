package main

import "github.com/ValentinKolb/lKV/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/ValentinKolb/rlink/cmd"

func main() {
	cmd.Execute()
}

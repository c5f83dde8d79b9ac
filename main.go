package main

import "github.com/ValentinKolb/dbatch/cmd"

func main() {
	cmd.Execute()
}

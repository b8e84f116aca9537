package main

import "github.com/ValentinKolb/netbus/cmd"

func main() {
	cmd.Execute()
}

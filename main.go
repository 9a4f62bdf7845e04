package main

import "sjsage522/pricetracker/cmd"

func main() {
	cmd.Execute()
}

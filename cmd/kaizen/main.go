package main

import "github.com/jrsteele09/kaizen-client/cmd/kaizen/cmd"

func main() {
	cmd.Execute()
}

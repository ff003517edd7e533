package main

import "github.com/railtrack-insight/trackwatch/cmd"

func main() {
	cmd.Execute()
}

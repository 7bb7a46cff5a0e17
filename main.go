package main

import "github.com/cdens/WxServer/cmd"

func main() {
	cmd.Execute()
}

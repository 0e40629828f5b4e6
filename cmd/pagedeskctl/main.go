package main

import "pagedesk/cmd/pagedeskctl/cmd"

func main() {
	cmd.Execute()
}

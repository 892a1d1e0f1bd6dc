package main

import "github.com/smiledesk/clinic-booking/cmd"

func main() {
	cmd.Execute()
}

package main

import "mwork_messaging/internal/app"

func main() {
	app.Run()
}

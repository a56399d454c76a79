package main

import "taskforce-bot.com/taskforce-bot/cmd"

func main() {
	cmd.Execute()
}

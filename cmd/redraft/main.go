package main

import (
	"redraft/cmd/handlers"
	"redraft/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}

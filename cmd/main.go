package main

import (
	"github.com/corray333/backend-labs/marketplace/internal/app"
	"github.com/corray333/backend-labs/marketplace/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}

package main

import (
	"github.com/corray333/backend-labs/floor/internal/app"
	"github.com/corray333/backend-labs/floor/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}

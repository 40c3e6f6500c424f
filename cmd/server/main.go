package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/autolot/internal/server"
	"github.com/dmitrijs2005/autolot/internal/server/config"

	// registers the libvips engine
	_ "github.com/dmitrijs2005/autolot/internal/server/transcode/vips"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}

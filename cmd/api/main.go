package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"repolens/internal/config"
	"repolens/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	svc, err := server.NewService(cfg)
	if err != nil {
		log.Fatal(err)
	}
	mux := server.BuildMux(server.NewHandler(svc))

	srv := server.New(cfg.Port, mux)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

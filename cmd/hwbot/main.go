package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"hwbot/internal/app"
	"hwbot/internal/config"
	logx "hwbot/pkg/logx"
)

func main() {
	var (
		cfgPath string
		envFile string
	)
	flag.StringVar(&cfgPath, "config", "", "path to config file (.yaml, .yml or .json); defaults apply when empty")
	flag.StringVar(&envFile, "env", ".env", "dotenv file loaded before reading credentials")
	flag.Parse()

	boot := logx.NewConsole("info")
	if err := config.LoadDotEnv(envFile); err != nil {
		boot.Warn("dotenv load failed", logx.String("path", envFile), logx.Err(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, app.Options{ConfigPath: cfgPath})
	if err != nil {
		boot.Critical("startup failed", logx.Err(err))
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		boot.Error("stopped with error", logx.Err(err))
		os.Exit(1)
	}
}

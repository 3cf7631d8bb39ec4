package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/keepmind9/chanbridge/internal/channel"
	"github.com/keepmind9/chanbridge/internal/gateway"
	"github.com/keepmind9/chanbridge/internal/logger"
	"github.com/keepmind9/chanbridge/internal/message"
)

var (
	configFile string

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the chanbridge gateway",
		Long:  "Start the chanbridge gateway, connect the enabled channels and normalize inbound messages",
		Run: func(cmd *cobra.Command, args []string) {
			// Load configuration
			config, err := gateway.LoadConfig(configFile)
			if err != nil {
				log.Fatalf("Failed to load config: %v", err)
			}

			fmt.Printf("Starting chanbridge with config: %s\n", configFile)

			// Initialize logger
			logConfig := logger.Config{
				Level:        config.Logging.Level,
				File:         config.Logging.File,
				MaxSize:      config.Logging.MaxSize,
				MaxBackups:   config.Logging.MaxBackups,
				MaxAge:       config.Logging.MaxAge,
				Compress:     config.Logging.Compress,
				EnableStdout: config.Logging.EnableStdout,
			}
			if err := logger.Init(logConfig); err != nil {
				log.Fatalf("Failed to initialize logger: %v", err)
			}

			logger.WithFields(logrus.Fields{
				"config_file": configFile,
				"log_level":   config.Logging.Level,
				"log_file":    config.Logging.File,
			}).Info("Logger initialized")

			g, err := gateway.NewFromConfig(config, hostHandlers())
			if err != nil {
				log.Fatalf("Failed to build gateway: %v", err)
			}

			if err := g.Start(); err != nil {
				log.Fatalf("Failed to start gateway: %v", err)
			}

			fmt.Println("chanbridge gateway started")
			fmt.Println("Press Ctrl+C to stop")

			// Setup signal handling for graceful shutdown
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			sig := <-sigChan
			log.Printf("Received signal: %v, shutting down gracefully...", sig)
			if err := g.Stop(); err != nil {
				log.Printf("Error during shutdown: %v", err)
			}

			log.Println("chanbridge stopped")
		},
	}
)

// hostHandlers is the handler set the binary itself runs with. Inbound
// messages are logged; downstream consumers embed the gateway package
// and supply their own.
func hostHandlers() channel.Handlers {
	return channel.Handlers{
		OnMessage: func(msg message.Inbound) {
			logger.WithFields(logrus.Fields{
				"channel":     msg.Channel,
				"chat_id":     msg.ChatID,
				"user":        msg.User.ID,
				"attachments": len(msg.Attachments),
			}).Info("Message received")
		},
		OnError: func(err error) {
			logger.WithField("error", err).Error("Channel error")
		},
	}
}

func init() {
	startCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
}

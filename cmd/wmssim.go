package cmd

import (
	"bufio"
	"context"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/logitrack/services/warehouse/config"
)

var wmsSimFailureRate float64

var wmsSimCmd = &cobra.Command{
	Use:   "wms-sim",
	Short: "Run a simulated WMS TCP peer",
	Long: `Run a standalone simulated warehouse management system for local
development: accepts connections on the configured WMS address, reads one
pipe-delimited message per connection and answers ACK after a randomized
processing delay, with an occasional NACK.`,
	RunE: runWMSSim,
}

func init() {
	rootCmd.AddCommand(wmsSimCmd)
	wmsSimCmd.Flags().Float64Var(&wmsSimFailureRate, "failure-rate", 0.1, "Fraction of messages answered with NACK")
}

func runWMSSim(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	listener, err := net.Listen("tcp", cfg.WMS.Address)
	if err != nil {
		return err
	}
	defer listener.Close()

	log.Info().
		Str("address", cfg.WMS.Address).
		Float64("failure_rate", wmsSimFailureRate).
		Msg("Simulated WMS listening")

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Simulated WMS shutting down")
				return nil
			}
			log.Error().Err(err).Msg("Accept failed")
			continue
		}

		latency := time.Duration(50+rng.Intn(150)) * time.Millisecond
		nack := rng.Float64() < wmsSimFailureRate
		go handleWMSConn(conn, latency, nack)
	}
}

func handleWMSConn(conn net.Conn, latency time.Duration, nack bool) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read message")
		return
	}

	message := strings.TrimSpace(line)
	log.Info().Str("message", message).Dur("latency", latency).Msg("Message received")

	time.Sleep(latency)

	reply := "ACK\n"
	if nack {
		reply = "NACK\n"
	}
	if _, err := conn.Write([]byte(reply)); err != nil {
		log.Warn().Err(err).Msg("Failed to write reply")
	}
}

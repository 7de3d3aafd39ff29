// Command qrecv accepts one inbound transfer over UDP from a qsend peer,
// writing the reassembled stream to an output file.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	qconfig "github.com/quantumxfer/quantumxfer/internal/config"
	"github.com/quantumxfer/quantumxfer/internal/observability/logging"
	"github.com/quantumxfer/quantumxfer/internal/observability/metrics"
	"github.com/quantumxfer/quantumxfer/internal/observability/tracing"
	"github.com/quantumxfer/quantumxfer/internal/quantum/channel"
	"github.com/quantumxfer/quantumxfer/internal/quantum/fec"
	"github.com/quantumxfer/quantumxfer/internal/quantum/receiver"
	"github.com/quantumxfer/quantumxfer/internal/quantum/sink"
	"github.com/quantumxfer/quantumxfer/pkg/guuid"
)

var (
	configFile    = flag.String("config", "", "optional YAML config overlay")
	metricsAddr   = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this host:port")
	traceEndpoint = flag.String("trace-endpoint", "", "if set, export spans to this OTLP/HTTP collector")
	useFEC        = flag.Bool("fec", false, "unwrap an inbound Reed-Solomon FEC-coded stream; must match the sender's -fec setting")
)

func main() {
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: qrecv <udp_port> <output_path>")
	}
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("qrecv: invalid udp_port %q: %w", args[0], err)
	}
	outputPath := args[1]

	cfg, err := qconfig.Load(*configFile)
	if err != nil {
		return fmt.Errorf("qrecv: %w", err)
	}

	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return fmt.Errorf("qrecv: %w", err)
	}
	defer logging.Sync(logger)

	transferID, err := guuid.NewTransferID()
	if err != nil {
		return fmt.Errorf("qrecv: %w", err)
	}
	logger = logger.With(zap.String("transfer_id", transferID.String()))

	var m *metrics.Metrics
	if *metricsAddr != "" {
		namespace, subsystem := cfg.MetricsOptions()
		m = metrics.New(namespace, subsystem)
		go serveMetrics(*metricsAddr, logger)
	}

	tracer, err := tracing.New(cfg.TracingOptions(*traceEndpoint != "", *traceEndpoint), logger)
	if err != nil {
		return fmt.Errorf("qrecv: %w", err)
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	defer tracer.Shutdown(shutdownCtx)

	sk, err := sink.Create(outputPath)
	if err != nil {
		return fmt.Errorf("qrecv: create output: %w", err)
	}
	defer sk.Close()

	ch, err := channel.Listen(port)
	if err != nil {
		return fmt.Errorf("qrecv: listen: %w", err)
	}
	defer ch.Close()

	var xfer channel.Channel = ch
	if *useFEC {
		codec, err := fec.Wrap(ch, cfg.FECOptions())
		if err != nil {
			return fmt.Errorf("qrecv: wrap fec: %w", err)
		}
		xfer = codec
	}

	ctx, span := tracer.Start(context.Background(), "transfer.receive")
	defer span.End()

	r := receiver.New(xfer, sk, receiver.WithLogger(logger))

	start := time.Now()
	transferErr := r.Receive(ctx)
	elapsed := time.Since(start)

	stats := r.Statistics()
	logger.Info("transfer finished",
		zap.Duration("elapsed", elapsed),
		zap.Any("statistics", stats),
		zap.Error(transferErr),
	)

	if m != nil {
		recordReceiverStats(m, stats, elapsed, transferErr)
	}

	if transferErr != nil {
		tracer.RecordError(ctx, transferErr)
		return fmt.Errorf("qrecv: %w", transferErr)
	}
	return nil
}

// recordReceiverStats copies a receiver's final Statistics() snapshot into
// the Prometheus collectors, since a one-shot transfer has no ongoing loop
// to update them incrementally.
func recordReceiverStats(m *metrics.Metrics, stats map[string]interface{}, elapsed time.Duration, transferErr error) {
	const role = "receiver"

	m.BytesTransferred.WithLabelValues(role).Add(float64(stats["bytes_written"].(int64)))
	m.TransferDuration.WithLabelValues(role).Observe(elapsed.Seconds())
	if transferErr != nil {
		m.TransferErrors.WithLabelValues(role, "transfer_failed").Inc()
	}
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics server listening", zap.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

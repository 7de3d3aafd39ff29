// Command qsend transfers a file over UDP to a qrecv peer using a
// sliding-window selective-repeat protocol with Reno-style congestion
// control.
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
	"golang.org/x/time/rate"

	qconfig "github.com/quantumxfer/quantumxfer/internal/config"
	"github.com/quantumxfer/quantumxfer/internal/observability/logging"
	"github.com/quantumxfer/quantumxfer/internal/observability/metrics"
	"github.com/quantumxfer/quantumxfer/internal/observability/tracing"
	"github.com/quantumxfer/quantumxfer/internal/quantum/channel"
	"github.com/quantumxfer/quantumxfer/internal/quantum/fec"
	"github.com/quantumxfer/quantumxfer/internal/quantum/sender"
	"github.com/quantumxfer/quantumxfer/internal/quantum/source"
	"github.com/quantumxfer/quantumxfer/pkg/guuid"
)

var (
	configFile    = flag.String("config", "", "optional YAML config overlay")
	metricsAddr   = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this host:port")
	traceEndpoint = flag.String("trace-endpoint", "", "if set, export spans to this OTLP/HTTP collector")
	useFEC        = flag.Bool("fec", false, "wrap the channel in Reed-Solomon forward error correction")
)

func main() {
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: qsend <receiver_host> <receiver_port> <input_path> <bytes_to_transfer>")
	}
	host := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("qsend: invalid receiver_port %q: %w", args[1], err)
	}
	inputPath := args[2]
	transferSize, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("qsend: invalid bytes_to_transfer %q: %w", args[3], err)
	}

	cfg, err := qconfig.Load(*configFile)
	if err != nil {
		return fmt.Errorf("qsend: %w", err)
	}

	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return fmt.Errorf("qsend: %w", err)
	}
	defer logging.Sync(logger)

	transferID, err := guuid.NewTransferID()
	if err != nil {
		return fmt.Errorf("qsend: %w", err)
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
		return fmt.Errorf("qsend: %w", err)
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	defer tracer.Shutdown(shutdownCtx)

	src, err := source.Open(inputPath)
	if err != nil {
		return fmt.Errorf("qsend: open input: %w", err)
	}
	defer src.Close()

	ch, err := channel.Dial(host, port)
	if err != nil {
		return fmt.Errorf("qsend: dial receiver: %w", err)
	}
	defer ch.Close()

	var xfer channel.Channel = ch
	if *useFEC {
		codec, err := fec.Wrap(ch, cfg.FECOptions())
		if err != nil {
			return fmt.Errorf("qsend: wrap fec: %w", err)
		}
		xfer = codec
	}

	ctx, span := tracer.Start(context.Background(), "transfer.send")
	defer span.End()

	limiter := rate.NewLimiter(rate.Limit(1000), 64)

	s := sender.New(xfer, src, transferSize,
		sender.WithLogger(logger),
		sender.WithPacer(limiter),
	)

	start := time.Now()
	transferErr := s.Transfer(ctx)
	elapsed := time.Since(start)

	stats := s.Statistics()
	logger.Info("transfer finished",
		zap.Duration("elapsed", elapsed),
		zap.Any("statistics", stats),
		zap.Error(transferErr),
	)

	if m != nil {
		recordSenderStats(m, stats, elapsed, transferErr)
	}

	if transferErr != nil {
		tracer.RecordError(ctx, transferErr)
		return fmt.Errorf("qsend: %w", transferErr)
	}
	return nil
}

// recordSenderStats copies a sender's final Statistics() snapshot into the
// Prometheus collectors, since a one-shot transfer has no ongoing loop to
// update them incrementally.
func recordSenderStats(m *metrics.Metrics, stats map[string]interface{}, elapsed time.Duration, transferErr error) {
	const role = "sender"

	m.BytesTransferred.WithLabelValues(role).Add(float64(stats["bytes_sent"].(int64)))
	m.PacketsSent.WithLabelValues(role).Add(float64(stats["packets_sent"].(int)))
	m.PacketsReceived.WithLabelValues(role).Add(float64(stats["packets_recv"].(int)))
	m.CongestionWindow.WithLabelValues(role).Set(float64(stats["window_size"].(int)))
	m.RTTEstimateSeconds.WithLabelValues(role).Set(stats["rtt_estimate_us"].(float64) / 1e6)
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

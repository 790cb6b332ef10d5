package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/kardianos/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/uofuseismo/cct-review/internal/auth"
	"github.com/uofuseismo/cct-review/internal/client"
	"github.com/uofuseismo/cct-review/internal/metrics"
	"github.com/uofuseismo/cct-review/pkg/models"
)

// Variables to hold flag values
var (
	expUser       string
	expPass       string
	expPort       int
	expSchemas    []string
	serviceAction string
)

// --- SERVICE WRAPPER ---

// program implements the kardianos/service interface
type program struct {
	exit     chan struct{}
	server   *http.Server
	api      *client.CCTClient
	holder   *auth.Holder
	schemas  []models.Schema
	port     int
	timeout  time.Duration
	user     string
	password string
}

func (p *program) Start(s service.Service) error {
	// Start should not block. Do the actual work async.
	p.exit = make(chan struct{})
	go p.run()
	return nil
}

func (p *program) login(ctx context.Context) error {
	_, err := p.holder.Login(ctx, p.api, p.user, p.password)
	return err
}

func (p *program) run() {
	// 1. Initial Login
	log.Println("Attempting initial login...")
	if err := p.login(context.Background()); err != nil {
		log.Printf("Fatal: Initial login failed: %v", err)
		// Exit so the service manager attempts a restart.
		os.Exit(1)
	}
	log.Println("Initial login successful.")

	// 2. Setup Prometheus
	registry := prometheus.NewRegistry()
	collector := &metrics.ReviewCollector{
		Client:  p.api,
		Schemas: p.schemas,
		Relogin: p.login,
		Timeout: p.timeout,
	}
	registry.MustRegister(collector)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog: log.Default(),
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if p.holder.Session() == nil {
			http.Error(w, "not logged in", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	})

	addr := fmt.Sprintf(":%d", p.port)
	p.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("CCT review exporter listening on %s", addr)

	// Blocking call to listen
	if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("HTTP Server error: %v", err)
	}
}

func (p *program) Stop(s service.Service) error {
	// Stop should not block. Signal the app to stop.
	log.Println("Stopping service...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if p.server != nil {
		if err := p.server.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}
	}
	close(p.exit)
	return nil
}

// --- COMMAND ---

var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Start Prometheus Exporter service",
	Long: `Starts a long-running HTTP server that exposes the review backlog of the
CCT service as Prometheus metrics. Can be installed as a system service.`,
	Run: func(cmd *cobra.Command, args []string) {
		settings := loadSettings()

		// 1. Resolve schemas and port
		var schemas []models.Schema
		for _, name := range expSchemas {
			schema, err := models.ParseSchema(name)
			if err != nil {
				log.Fatal(err)
			}
			schemas = append(schemas, schema)
		}
		if len(schemas) == 0 {
			schemas = []models.Schema{settings.Schema}
		}
		port := expPort
		if port == 0 {
			port = settings.ExporterPort
		}

		// 2. Define Service Configuration
		svcConfig := &service.Config{
			Name:        "cct-review-exporter",
			DisplayName: "CCT Review Prometheus Exporter",
			Description: "Exposes the Mw,coda review backlog to Prometheus",
			// Arguments passed to the binary when run as a service
			Arguments: []string{
				"exporter",
				"--username", expUser,
				"--password", expPass,
				"--port", strconv.Itoa(port),
			},
		}
		for _, s := range schemas {
			svcConfig.Arguments = append(svcConfig.Arguments, "--schemas", string(s))
		}
		if cfgFile != "" {
			svcConfig.Arguments = append(svcConfig.Arguments, "--config", cfgFile)
		}

		holder := auth.NewHolder()
		prg := &program{
			api:      client.New(clientConfig(settings), holder),
			holder:   holder,
			schemas:  schemas,
			port:     port,
			timeout:  settings.Timeout,
			user:     expUser,
			password: expPass,
		}

		s, err := service.New(prg, svcConfig)
		if err != nil {
			log.Fatal(err)
		}

		// 3. Handle Service Control Actions (Install, Start, Stop, Uninstall)
		if serviceAction != "" {
			if serviceAction == "install" && (expUser == "" || expPass == "") {
				log.Fatal("Error: You must provide --username and --password to install the service.")
			}

			err = service.Control(s, serviceAction)
			if err != nil {
				log.Fatalf("Failed to %s service: %v", serviceAction, err)
			}
			fmt.Printf("Service action '%s' completed successfully.\n", serviceAction)
			return
		}

		// 4. Run the Service (Blocking)
		logger, err := s.Logger(nil)
		if err != nil {
			log.Fatal(err)
		}
		if err = s.Run(); err != nil {
			logger.Error(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(exporterCmd)
	exporterCmd.Flags().StringVar(&expUser, "username", "", "CCT username")
	exporterCmd.Flags().StringVar(&expPass, "password", "", "CCT password")
	exporterCmd.Flags().IntVar(&expPort, "port", 0, "Port to listen on (default from exporter.port)")
	exporterCmd.Flags().StringSliceVar(&expSchemas, "schemas", nil, "Schemas to export (default is the configured schema)")

	exporterCmd.Flags().StringVar(&serviceAction, "service", "", "Service action: install, uninstall, start, stop")
}

// Package main is the entry point for the blogsmith API.
//
// Usage:
//
//	blogsmith serve
//	blogsmith serve --config config.yaml
//	blogsmith prompt --topic "tide pools" --words 500 --outline
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/howard-nolan/blogsmith/internal/blog"
	"github.com/howard-nolan/blogsmith/internal/config"
	"github.com/howard-nolan/blogsmith/internal/logging"
	"github.com/howard-nolan/blogsmith/internal/provider"
	"github.com/howard-nolan/blogsmith/internal/server"
)

// shutdownGrace is how long in-flight generations get to finish after
// SIGINT/SIGTERM before the listener is torn down.
const shutdownGrace = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "blogsmith",
		Short:         "AI blog generator API backed by Groq",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newPromptCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configPath string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath)
		},
	}
	serve.Flags().StringVarP(&configPath, "config", "c", "config.yaml",
		"YAML config file (skipped when missing)")
	return serve
}

func newPromptCmd() *cobra.Command {
	var (
		req   = blog.NewRequest()
		words int
	)

	prompt := &cobra.Command{
		Use:   "prompt",
		Short: "Print the prompt a request would send upstream, without calling it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Topic == "" {
				return errors.New("--topic is required")
			}
			req.Words = &words
			return printPrompt(cmd.OutOrStdout(), req)
		},
	}

	f := prompt.Flags()
	f.StringVarP(&req.Topic, "topic", "t", "", "Blog topic")
	f.StringVarP(&req.Style, "style", "s", "", "Voice or tone, e.g. conversational")
	f.IntVarP(&words, "words", "w", blog.DefaultWords, "Approximate word count (0 omits the length line)")
	f.BoolVar(&req.Outline, "outline", false, "Ask for an outline before the article")
	return prompt
}

func printPrompt(w io.Writer, req blog.Request) error {
	_, err := fmt.Fprintln(w, blog.BuildPrompt(req))
	return err
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Nothing is configured yet, so fall back to a default JSON logger.
		logging.New(os.Stderr, "info", "json").Error("failed to load config", "error", err)
		return err
	}

	log := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	// One client for the process lifetime; its timeout is the only bound on
	// a single upstream call.
	httpClient := &http.Client{Timeout: cfg.Groq.Timeout}
	groq := provider.NewGroqProvider(cfg.Groq.APIKey, cfg.Groq.BaseURL, httpClient)

	gen := blog.NewGenerator(groq, provider.GroqDisplayName, cfg.Groq.Model, cfg.Server.MaxInFlight, log)
	srv := server.New(cfg, gen, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Info("blogsmith listening",
		"addr", httpServer.Addr,
		"env", cfg.App.Env,
		"model", cfg.Groq.Model,
		"allowed_origins", cfg.CORS.AllowedOrigins,
		"max_inflight", cfg.Server.MaxInFlight,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

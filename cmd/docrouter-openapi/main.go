// Package main provides a CLI tool to generate the OpenAPI specification for
// the DocRouter API. It uses the shared route definitions to produce an
// accurate spec without requiring any real services or databases.
//
// Usage:
//
//	go run ./cmd/docrouter-openapi > openapi.json
//	go run ./cmd/docrouter-openapi -yaml > openapi.yaml
//	go run ./cmd/docrouter-openapi -output openapi.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/docrouter-ai/docrouter-api/internal/http/handlers"
	"github.com/docrouter-ai/docrouter-api/internal/http/routes"
	"github.com/docrouter-ai/docrouter-api/internal/version"
)

func main() {
	outputFile := flag.String("output", "", "Output file path (default: stdout)")
	outputYAML := flag.Bool("yaml", false, "Output as YAML instead of JSON")
	baseURL := flag.String("base-url", "https://api.docrouter.ai", "Base URL for the API server")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get().Short())
		return
	}

	// A minimal chi router - we never serve requests, so the handlers can
	// run without services behind them.
	router := chi.NewRouter()
	api := humachi.New(router, routes.NewHumaConfig(*baseURL))
	routes.Register(api, handlers.New(slog.Default(), nil, nil, nil))

	spec := api.OpenAPI()

	var data []byte
	var err error
	if *outputYAML {
		data, err = yaml.Marshal(spec)
	} else {
		data, err = json.MarshalIndent(spec, "", "  ")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshaling OpenAPI spec: %v\n", err)
		os.Exit(1)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "error writing to file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "OpenAPI spec written to %s\n", *outputFile)
	} else {
		fmt.Print(string(data))
	}
}

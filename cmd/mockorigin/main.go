// Package main runs a standalone mock dataset origin for local development.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/nexus-geo/nexus-gateway/internal/testutil/mockorigin"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9080"
	}

	origin := mockorigin.NewOrigin()
	origin.SetJSON("/municipalities.json",
		`[{"id":3550308,"name":"São Paulo","uf":"SP"},`+
			`{"id":3304557,"name":"Rio de Janeiro","uf":"RJ"},`+
			`{"id":2927408,"name":"Salvador","uf":"BA"}]`)
	origin.SetJSON("/strategy.json", `{"regions":[],"generated":"dev"}`)
	origin.SetJSON("/routes.json", `{"routes":[],"generated":"dev"}`)
	origin.SetJSON("/datasets/geo_sp.json", `{"type":"FeatureCollection","features":[]}`)

	addr := fmt.Sprintf(":%s", port)
	log.Printf("mock origin serving on %s", addr)
	if err := http.ListenAndServe(addr, origin); err != nil {
		log.Fatalf("mock origin failed: %v", err)
	}
}

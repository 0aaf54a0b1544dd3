// Package main is the entry point for the RAG service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/ragsvc/cmd/ragsvc/app"
)

func main() {
	app.NewApp().Run()
}

// Package main is the entry point for the logistics deploy bootstrapper.
//
// It installs the project's Python dependencies, puts the project on the
// interpreter search path, collects static files and applies migrations,
// stopping at the first failing step and exiting with that step's status.
//
//	@title			Logistics Deploy Agent API
//	@version		1.0
//	@description	Deploy agent for the logistics API: runs dependency install, search-path setup, collectstatic and migrate, and reports dependency health.
//	@host			localhost:8081
//	@BasePath		/
//	@schemes		http
package main

import "os"

func main() {
	os.Exit(Execute())
}

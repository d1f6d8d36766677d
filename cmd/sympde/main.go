// cmd/sympde/main.go: command line front end for weak-form problems
//
// Usage:
//
//	sympde evaluate poisson.yaml --form a
//	sympde tensorize poisson.yaml
//	sympde logical annulus.yaml --subs --at 0.5,0.25
//	sympde run *.yaml --tool check
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

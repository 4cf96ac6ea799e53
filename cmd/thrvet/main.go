/**
 * @file main.go
 * @brief thrvet reports misuse of the rthread synchronization objects.
 */
package main

import "golang.org/x/tools/go/analysis/singlechecker"

func main() {
	singlechecker.Main(Analyzer)
}

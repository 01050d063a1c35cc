// Command ecosphere runs the litter report service and its operator tools.
package main

var Version = "development"

func main() {
	Execute(Version)
}

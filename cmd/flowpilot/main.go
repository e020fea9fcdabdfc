// Command flowpilot coordinates batches of tasks across specialist workers.
package main

func main() {
	Execute()
}

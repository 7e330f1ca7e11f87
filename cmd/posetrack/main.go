// Command posetrack runs the VR tracking loop with its HTTP API and manages
// recorded sessions.
package main

func main() {
	Execute()
}

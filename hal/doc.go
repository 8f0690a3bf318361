// Package hal defines the peripheral boundary of hearmix.
//
// The control loop never touches hardware directly. It reads an AnalogInput
// (the gain potentiometer), a DigitalInput (the mode button) and writes
// DigitalOutputs (the status indicator and the microphone array mode select).
// Board support code supplies real implementations; this package ships
// in-memory ones for tests and the host simulator.
//
// # Pin Directions
//
// Pins that need explicit setup implement Configurer. The control loop calls
// Configure once during initialization, before the first cycle:
//
//	if c, ok := pin.(hal.Configurer); ok {
//	    err := c.Configure(hal.DirectionOutput)
//	}
//
// # Simulated Pins
//
//	pot := hal.NewSimAnalog(512)
//	button := hal.NewSimDigitalInput(false)
//	led := hal.NewSimDigitalOutput()
//
//	pot.Set(1023)
//	button.Set(true)
//
// Simulated pins are safe for concurrent use so a test or a host UI can drive
// them while the loop runs on another goroutine.
//
// Interactive and scripted implementations live in the terminal and script
// subpackages.
package hal

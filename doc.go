// Package hearmix implements the audio mixing control loop of a
// hearing-assistance device.
//
// Four microphones feed two ears: mics 0 and 2 to the left, mics 1 and 3 to
// the right, and a 500 Hz reference tone to both. A potentiometer sets one
// gain shared by all six mixer taps. A momentary button makes the tone
// audible and lights an indicator while held.
//
// # Getting Started
//
//	options := hearmix.NewOptions()
//	device, err := hearmix.New(options, hearmix.Hardware{
//		Gain:      pot,
//		Button:    button,
//		Indicator: led,
//		MicSelect: micSelect,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer device.Close()
//
//	go device.Engine().Run(ctx, output)
//	err = device.Run(ctx)
//
// # Core Types
//
//   - [Device]: engine, mix graph, tone and control loop wired together
//   - [Options]: configuration, created with [NewOptions]
//   - [Hardware]: the potentiometer, button, indicator and mic-select pins
//
// # Packages
//
//   - audio: routing table, mix graph, tone, reference engine and sources
//   - audio/speaker: host playback
//   - control: gain mapping, button, pacer and control loop
//   - hal: peripheral interfaces with in-memory, terminal and Lua-scripted devices
//   - diag: serial-style reports and a websocket status stream
//   - limits: device constants
//
// # Timing
//
// The control loop runs at a fixed interval of [limits.CycleInterval]
// (25 ms, 40 Hz). The interval doubles as the settling delay between the
// potentiometer read and the gain update.
package hearmix

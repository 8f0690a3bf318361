// Package main provides hearmix, a host simulator for the hearing-assistance
// device.
//
// It runs the real control loop and the reference audio engine on a desktop.
// The potentiometer and button come from the keyboard, a Lua scenario or
// fixed flag values. Microphones are synthetic or replayed from Opus
// captures, and the stereo output plays on the sound card. Serial-style
// report lines and a websocket status stream are available for observation.
package main

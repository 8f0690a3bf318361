// Package control implements the hearmix control loop.
//
// Each cycle the loop samples the gain potentiometer, waits for the analog
// front end to settle, maps the sample to a gain and applies it to every
// mixer tap, then samples the mode button and drives the reference tone and
// the indicator LED from it:
//
//	pacer, _ := control.NewTickerPacer(limits.CycleInterval)
//	loop, err := control.NewLoop(control.LoopConfig{
//		Gain:      gain,
//		Button:    button,
//		Indicator: led,
//		MicSelect: micSelect,
//		Graph:     graph,
//		Tone:      tone,
//		Pacer:     pacer,
//	})
//	if err := loop.Init(); err != nil { ... }
//	err = loop.Run(ctx)
//
// The gain mapping truncates to whole percent, so the potentiometer has 101
// distinct positions:
//
//	control.MapRawGain(0)    // 0.00
//	control.MapRawGain(511)  // 0.49
//	control.MapRawGain(1023) // 1.00
//
// Mode is a pure function of the current button sample unless a debounce
// window is configured.
package control

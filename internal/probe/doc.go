// Package probe derives display geometry for a video source.
//
// Prober wraps ffprobe.Inspect, selecting the first video stream and folding
// its rotation descriptor into display dimensions and an exact aspect ratio.
// Every failure is reported as *Error and matches ErrProbe via errors.Is.
package probe

// Package signal conditions marker and analog channels: zero-phase
// Butterworth low-pass filtering and cubic-spline resampling onto a uniform
// time grid. Every channel (each marker axis, each analog channel) is
// processed independently.
package signal

// Package gait holds the trial data model shared by every processing stage:
// marker trajectories, analog channels, gait events, strides and the error
// kinds a trial can fail with.
//
// Stages never mutate a Trial they receive; they return new values derived
// from it. Missing marker samples are carried as invalid Positions and only
// become NaN at serialization boundaries.
package gait

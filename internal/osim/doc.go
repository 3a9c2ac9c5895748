// Package osim drives the external musculoskeletal solver. It writes the
// solver's XML setup documents, runs inverse kinematics and inverse
// dynamics through its command-line tool, reads the storage files it
// produces, and post-processes the results into joint powers and
// mass-normalised kinetics.
package osim

// Package markers maps a lab's raw marker labels onto the canonical marker
// vocabulary and trims gap-filled frames from the ends of a trial.
//
// The canonical vocabulary is the sided marker set of the conventional gait
// model (LASI, RHEE, ...) plus the trunk markers C7, T2, T10, MAN and SACR.
package markers

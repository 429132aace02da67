// Package audio provides the PCM primitives of the media relay: sample
// formats, linear-interpolation resampling between the telephony and
// conversational sample rates, and bounded fixed-duration frame buffering.
package audio

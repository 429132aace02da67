// Package vad provides voice activity detection over PCM16 frames. The
// default detector classifies frames by RMS energy; the Detector interface
// lets a model-backed classifier be swapped in without touching callers.
package vad

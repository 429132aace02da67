// Package codec implements the G.711 μ-law audio codec used on the telephony
// media stream. Decoding is a 256-entry table lookup; encoding follows the
// segment/bias algorithm from the ITU-T G.711 specification.
package codec

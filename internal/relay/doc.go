// Package relay bridges one telephone call with one conversational API
// session. A StreamRelay runs two pumps: caller audio is decoded from
// μ-law, upsampled and streamed to the model; model audio is downsampled,
// re-encoded and paced back to the caller in fixed frames. The Manager
// tracks all live relays and reaps idle ones.
package relay

package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Used on shutdown paths to keep the capture loop from blocking on a queue
// whose consumer has already failed.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}

package asqlite

// unbounded returns the two ends of an unbounded FIFO channel. Sends never
// block; a pump goroutine buffers pending items. Closing the send side
// flushes the buffer and then closes the receive side.
func unbounded[T any]() (chan<- T, <-chan T) {
	in := make(chan T)
	out := make(chan T)

	go func() {
		defer close(out)
		var buf []T
		for in != nil || len(buf) > 0 {
			var send chan T
			var head T
			if len(buf) > 0 {
				send = out
				head = buf[0]
			}
			select {
			case v, ok := <-in:
				if !ok {
					in = nil
					continue
				}
				buf = append(buf, v)
			case send <- head:
				buf = buf[1:]
			}
		}
	}()

	return in, out
}

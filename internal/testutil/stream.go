package testutil

import (
	"strings"
	"time"

	"github.com/amandahq/converse/core"
)

// StreamResult is the drained outcome of one turn's chunk stream.
type StreamResult struct {
	// Text is the concatenation of all non-terminal fragments.
	Text string
	// DoneCount is how many terminal chunks were observed.
	DoneCount int
	// Err is the first out-of-band error, if any.
	Err error
}

// Drain consumes a turn's chunk and error channels until both close and
// returns what was observed. It guards against hangs with a generous timeout.
func Drain(chunks <-chan core.Chunk, errs <-chan error) StreamResult {
	var (
		sb  strings.Builder
		res StreamResult
	)
	timeout := time.After(10 * time.Second)
	for chunks != nil || errs != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if c.Done {
				res.DoneCount++
			} else {
				sb.WriteString(c.Text)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if res.Err == nil {
				res.Err = err
			}
		case <-timeout:
			res.Text = sb.String()
			return res
		}
	}
	res.Text = sb.String()
	return res
}

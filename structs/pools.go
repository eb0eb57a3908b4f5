package structs

import (
	"bytes"

	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"
)

// buffers holds scratch buffers for Marshal to assemble output in.
var buffers = sync.NewPool[*bytes.Buffer](
	context.Background(),
	"bufferPool",
	func() *bytes.Buffer {
		return &bytes.Buffer{}
	},
	sync.WithBuffer(100),
)

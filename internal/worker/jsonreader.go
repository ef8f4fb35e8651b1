package worker

import "bytes"

// newJSONReader adapts a marshaled JSON body to an io.Reader for
// http.NewRequestWithContext without each call site importing bytes.
func newJSONReader(data []byte) *bytes.Reader {
	return bytes.NewReader(data)
}
